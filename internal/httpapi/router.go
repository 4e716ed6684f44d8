// Package httpapi exposes the arena over HTTP: the client page, the
// websocket endpoint and a few read-only JSON views.
package httpapi

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

//go:embed web/index.html
var indexHTML []byte

// RoomLister is satisfied by *arena.Coordinator.
type RoomLister interface {
	Rooms(ctx context.Context) ([]arenaproto.RoomSnapshot, error)
}

// ResultReader is satisfied by *archive.RedisStore.
type ResultReader interface {
	Recent(ctx context.Context, n int) ([]arenaproto.GameRecord, error)
}

type Deps struct {
	Rooms   RoomLister
	Results ResultReader // nil when no Redis archive is configured
	WS      http.Handler
	Logger  *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = obslog.L()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	r.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if d.WS != nil {
		r.GET("/ws", gin.WrapH(d.WS))
	}

	h := &handlers{rooms: d.Rooms, results: d.Results}
	r.GET("/healthz", h.health)
	r.GET("/rooms", h.listRooms)
	r.GET("/results", h.listResults)
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		log.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
