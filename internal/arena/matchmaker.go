package arena

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

// assign seats conn. Pairing is strictly first-available: the oldest waiting
// room gets its black player, otherwise a new room is opened while under the
// room limit, otherwise conn watches the newest room.
func (c *Coordinator) assign(conn *Connection) Seat {
	if room, ok := c.registry.FirstWaiting(); ok {
		c.seatBlack(room, conn)
		return SeatBlack
	}
	if c.opts.RoomLimit <= 0 || c.registry.Len() < c.opts.RoomLimit {
		if c.openRoom(conn) {
			return SeatWhite
		}
	}
	if room, ok := c.registry.Latest(); ok {
		c.seatSpectator(room, conn)
		return SeatSpectator
	}
	return SeatUnassigned
}

func (c *Coordinator) openRoom(conn *Connection) bool {
	now := c.opts.Clock()
	room := newRoom(uuid.NewString(), c.opts.Engines(), now)
	room.White = conn.ID
	if err := c.registry.Insert(room); err != nil {
		c.log.Error("room_create_failed", zap.String("room_id", room.ID), zap.Error(err))
		return false
	}
	conn.RoomID = room.ID
	conn.Seat = SeatWhite

	c.send(conn, c.outbound(arenaproto.TypePlayerRole, string(rules.White)))
	c.send(conn, c.outbound(arenaproto.TypeWaiting, c.text("room.waiting", nil, "Waiting for an opponent...")))
	c.send(conn, c.outbound(arenaproto.TypeBoardState, room.engine.FEN()))
	c.log.Info("room_create",
		zap.String("room_id", room.ID),
		zap.String("white", conn.ID),
		zap.Int("rooms", c.registry.Len()),
	)
	return true
}

func (c *Coordinator) seatBlack(room *Room, conn *Connection) {
	now := c.opts.Clock()
	room.Black = conn.ID
	room.Status = StatusActive
	room.startedAt = now
	conn.RoomID = room.ID
	conn.Seat = SeatBlack

	c.send(conn, c.outbound(arenaproto.TypePlayerRole, string(rules.Black)))
	c.broadcast(room, c.outbound(arenaproto.TypeBoardState, room.engine.FEN()))
	turn := room.engine.Turn().Title()
	c.broadcast(room, c.outbound(arenaproto.TypeMessage, c.text("room.started", map[string]any{"Turn": turn}, "Game started.")))
	c.log.Info("room_join",
		zap.String("room_id", room.ID),
		zap.String("white", room.White),
		zap.String("black", room.Black),
		zap.Duration("waited", now.Sub(room.CreatedAt)),
	)
}

func (c *Coordinator) seatSpectator(room *Room, conn *Connection) {
	room.Spectators = append(room.Spectators, conn.ID)
	conn.RoomID = room.ID
	conn.Seat = SeatSpectator

	c.send(conn, c.outbound(arenaproto.TypeSpectatorRole, nil))
	c.send(conn, c.outbound(arenaproto.TypeBoardState, room.engine.FEN()))
	c.send(conn, c.outbound(arenaproto.TypeMessage, c.text("spectator.welcome", map[string]any{"Room": room.ID}, "You are watching this game.")))
	c.log.Info("room_spectate",
		zap.String("room_id", room.ID),
		zap.String("conn_id", conn.ID),
		zap.Int("spectators", len(room.Spectators)),
	)
}
