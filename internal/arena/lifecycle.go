package arena

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

// Scheduler runs f once after d. Tests substitute a manual implementation.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// scheduleReset arms a one-shot reset. The timer carries only the room id and
// the generation it was armed under; the room is re-resolved when it fires.
func (c *Coordinator) scheduleReset(room *Room) {
	roomID, gen := room.ID, room.generation
	c.opts.Scheduler.AfterFunc(c.opts.ResetDelay, func() {
		if err := c.enqueue(context.Background(), func() { c.fireReset(roomID, gen) }); err != nil {
			c.log.Debug("reset_not_queued", zap.String("room_id", roomID), zap.Error(err))
		}
	})
	c.log.Debug("reset_scheduled", zap.String("room_id", roomID), zap.Uint64("generation", gen), zap.Duration("delay", c.opts.ResetDelay))
}

func (c *Coordinator) fireReset(roomID string, gen uint64) {
	room, ok := c.registry.Get(roomID)
	if !ok || room.Status != StatusOver || room.generation != gen {
		c.log.Debug("reset_stale", zap.String("room_id", roomID), zap.Uint64("generation", gen))
		return
	}
	c.resetRoom(room, "timer")
}

// resetRoom installs a fresh engine and announces the new game. A room with
// both seats filled becomes Active; a half-filled room stays Waiting.
func (c *Coordinator) resetRoom(room *Room, cause string) {
	room.generation++
	room.install(c.opts.Engines(), c.opts.Clock())
	if room.full() {
		room.Status = StatusActive
	} else {
		room.Status = StatusWaiting
	}

	c.broadcast(room, c.outbound(arenaproto.TypeBoardState, room.engine.FEN()))
	c.broadcast(room, c.outbound(arenaproto.TypeClearCheck, nil))
	turn := room.engine.Turn().Title()
	c.broadcast(room, c.outbound(arenaproto.TypeMessage, c.text("room.new_game", map[string]any{"Turn": turn}, "New game started.")))
	c.log.Info("room_reset",
		zap.String("room_id", room.ID),
		zap.String("cause", cause),
		zap.String("status", string(room.Status)),
		zap.Uint64("generation", room.generation),
	)
}
