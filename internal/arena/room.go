package arena

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusActive  Status = "ACTIVE"
	StatusOver    Status = "OVER"
)

// Seat is a connection's role within its room.
type Seat string

const (
	SeatUnassigned Seat = "unassigned"
	SeatWhite      Seat = "white"
	SeatBlack      Seat = "black"
	SeatSpectator  Seat = "spectator"
)

func seatFor(side rules.Side) Seat {
	if side == rules.White {
		return SeatWhite
	}
	return SeatBlack
}

// Result is the final outcome of a game. Winner is "White", "Black" or "Draw".
type Result struct {
	Winner string
	Reason string
}

// Connection is one participant. Its ID never depends on the transport.
type Connection struct {
	ID     string
	RoomID string
	Seat   Seat
	sink   Sink
}

// Room is one chess table: two seats, spectators and one owned engine.
type Room struct {
	ID         string
	White      string
	Black      string
	Spectators []string
	Status     Status
	Result     *Result
	CreatedAt  time.Time

	engine     rules.Engine
	inCheck    bool
	generation uint64
	gameID     string
	startedAt  time.Time
}

func newRoom(id string, engine rules.Engine, now time.Time) *Room {
	return &Room{
		ID:        id,
		Status:    StatusWaiting,
		CreatedAt: now,
		engine:    engine,
		gameID:    uuid.NewString(),
		startedAt: now,
	}
}

// SeatOf reports which seat connID holds in this room.
func (r *Room) SeatOf(connID string) Seat {
	switch {
	case connID == "":
		return SeatUnassigned
	case r.White == connID:
		return SeatWhite
	case r.Black == connID:
		return SeatBlack
	case lo.Contains(r.Spectators, connID):
		return SeatSpectator
	default:
		return SeatUnassigned
	}
}

// Members returns white, black and then spectators, skipping vacant seats.
func (r *Room) Members() []string {
	out := make([]string, 0, 2+len(r.Spectators))
	if r.White != "" {
		out = append(out, r.White)
	}
	if r.Black != "" {
		out = append(out, r.Black)
	}
	return append(out, r.Spectators...)
}

func (r *Room) full() bool { return r.White != "" && r.Black != "" }

func (r *Room) removeSpectator(connID string) {
	r.Spectators = lo.Without(r.Spectators, connID)
}

// install replaces the engine with a fresh instance and starts a new game id.
func (r *Room) install(engine rules.Engine, now time.Time) {
	r.engine = engine
	r.Result = nil
	r.inCheck = false
	r.gameID = uuid.NewString()
	r.startedAt = now
}

func (r *Room) snapshot() arenaproto.RoomSnapshot {
	snap := arenaproto.RoomSnapshot{
		ID:         r.ID,
		Status:     string(r.Status),
		White:      r.White,
		Black:      r.Black,
		Spectators: len(r.Spectators),
		FEN:        r.engine.FEN(),
		Turn:       string(r.engine.Turn()),
		InCheck:    r.inCheck,
		CreatedAt:  r.CreatedAt,
	}
	uci, _ := r.engine.History()
	snap.Moves = len(uci)
	if r.Result != nil {
		snap.Winner = r.Result.Winner
		snap.Reason = r.Result.Reason
	}
	return snap
}
