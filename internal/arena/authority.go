package arena

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

// Classification is the single label attached to an accepted move.
type Classification string

const (
	ClassNone      Classification = "none"
	ClassCheck     Classification = "check"
	ClassCheckmate Classification = "checkmate"
	ClassStalemate Classification = "stalemate"
	ClassDraw      Classification = "draw"
)

// MoveOutcome is what the authority hands to the dispatcher.
type MoveOutcome struct {
	Move       rules.MoveResult
	Class      Classification
	SideToMove rules.Side
	FEN        string
	LegalMoves int
}

func newMoveValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("square", func(fl validator.FieldLevel) bool {
		return rules.ValidSquare(fl.Field().String())
	})
	return v
}

func normalizeMove(mv arenaproto.Move) arenaproto.Move {
	return arenaproto.Move{
		From:      strings.ToLower(strings.TrimSpace(mv.From)),
		To:        strings.ToLower(strings.TrimSpace(mv.To)),
		Promotion: strings.ToLower(strings.TrimSpace(mv.Promotion)),
	}
}

// submit runs the precondition checks in order. Every failure before the
// engine is consulted is dropped without a reply.
func (c *Coordinator) submit(connID string, raw arenaproto.Move) {
	conn, ok := c.conns[connID]
	if !ok {
		return
	}
	room, ok := c.registry.Get(conn.RoomID)
	if !ok || room.Status != StatusActive {
		c.log.Debug("move_dropped", zap.String("conn_id", connID), zap.String("cause", "room_not_active"))
		return
	}
	mv := normalizeMove(raw)
	if err := c.validate.Struct(mv); err != nil {
		c.log.Debug("move_dropped", zap.String("conn_id", connID), zap.String("cause", "malformed"), zap.Error(err))
		return
	}
	if room.SeatOf(connID) != seatFor(room.engine.Turn()) {
		c.log.Debug("move_dropped",
			zap.String("conn_id", connID),
			zap.String("cause", "out_of_turn"),
			zap.String("seat", string(room.SeatOf(connID))),
		)
		return
	}

	out, err := c.apply(room, mv)
	if err != nil {
		c.log.Debug("move_rejected", zap.String("room_id", room.ID), zap.String("from", mv.From), zap.String("to", mv.To), zap.Error(err))
		c.send(conn, c.outbound(arenaproto.TypeInvalidMove, raw))
		return
	}
	c.log.Info("move_applied",
		zap.String("room_id", room.ID),
		zap.String("side", string(out.Move.Side)),
		zap.String("uci", out.Move.UCI),
		zap.String("san", out.Move.SAN),
		zap.String("class", string(out.Class)),
	)
	c.dispatch(room, out)
}

// apply asks the engine to play mv and classifies the result. A panic inside
// the engine is reported as an error.
func (c *Coordinator) apply(room *Room, mv arenaproto.Move) (out MoveOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("engine_panic", zap.String("room_id", room.ID), zap.Any("panic", r))
			out = MoveOutcome{}
			err = fmt.Errorf("%w: %v", ErrEnginePanic, r)
		}
	}()
	res, err := room.engine.Apply(rules.MoveSpec{From: mv.From, To: mv.To, Promotion: mv.Promotion})
	if err != nil {
		return MoveOutcome{}, err
	}
	return MoveOutcome{
		Move:       res,
		Class:      classify(room.engine),
		SideToMove: room.engine.Turn(),
		FEN:        room.engine.FEN(),
		LegalMoves: room.engine.LegalMoveCount(),
	}, nil
}

// classify picks one label; checkmate > stalemate > draw > check > none.
func classify(e rules.Engine) Classification {
	switch {
	case e.IsCheckmate():
		return ClassCheckmate
	case e.IsStalemate():
		return ClassStalemate
	case e.IsDraw():
		return ClassDraw
	case e.InCheck():
		return ClassCheck
	default:
		return ClassNone
	}
}
