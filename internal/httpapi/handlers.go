package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	rooms   RoomLister
	results ResultReader
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"status": "error", "message": msg})
}

func (h *handlers) health(c *gin.Context) {
	rooms, err := h.rooms.Rooms(c.Request.Context())
	if err != nil {
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(rooms)})
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.rooms.Rooms(c.Request.Context())
	if err != nil {
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *handlers) listResults(c *gin.Context) {
	if h.results == nil {
		fail(c, http.StatusNotFound, "results archive disabled")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	recs, err := h.results.Recent(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, recs)
}
