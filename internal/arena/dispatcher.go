package arena

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

const winnerDraw = "Draw"

// dispatch broadcasts an accepted move in fixed order: boardState, then
// pieceCaptured when something was taken, then exactly one of gameOver,
// check or clearCheck, and noMoves last when the side to move is stuck
// without the engine having ended the game.
func (c *Coordinator) dispatch(room *Room, out MoveOutcome) {
	c.broadcast(room, c.outbound(arenaproto.TypeBoardState, out.FEN))

	if out.Move.Captured != "" {
		c.broadcast(room, c.outbound(arenaproto.TypePieceCaptured, arenaproto.PieceCaptured{
			CapturedBy:   string(out.Move.Side),
			CapturedOf:   out.Move.Side.Opponent().Long(),
			CapturedType: out.Move.Captured,
		}))
	}

	switch out.Class {
	case ClassCheckmate:
		c.finish(room, Result{Winner: out.Move.Side.Title(), Reason: "Checkmate"})
		return
	case ClassStalemate:
		c.finish(room, Result{Winner: winnerDraw, Reason: "Stalemate"})
		return
	case ClassDraw:
		c.finish(room, Result{Winner: winnerDraw, Reason: "Draw"})
		return
	case ClassCheck:
		room.inCheck = true
		c.broadcast(room, c.outbound(arenaproto.TypeCheck, arenaproto.Check{ColorInCheck: string(out.SideToMove)}))
	default:
		if room.inCheck {
			room.inCheck = false
			c.broadcast(room, c.outbound(arenaproto.TypeClearCheck, nil))
		}
	}

	if out.LegalMoves == 0 {
		c.broadcast(room, c.outbound(arenaproto.TypeNoMoves, arenaproto.NoMoves{SideToMove: string(out.SideToMove)}))
	}
}

// finish moves room to Over, announces the result, archives the game and
// schedules the automatic reset.
func (c *Coordinator) finish(room *Room, res Result) {
	room.Status = StatusOver
	room.Result = &res
	room.inCheck = false
	c.broadcast(room, c.outbound(arenaproto.TypeGameOver, arenaproto.GameOver{Winner: res.Winner, Reason: res.Reason}))
	c.log.Info("game_over",
		zap.String("room_id", room.ID),
		zap.String("game_id", room.gameID),
		zap.String("winner", res.Winner),
		zap.String("reason", res.Reason),
	)
	c.record(room, res)
	c.scheduleReset(room)
}

func (c *Coordinator) record(room *Room, res Result) {
	if c.opts.Recorder == nil {
		return
	}
	uci, san := room.engine.History()
	rec := arenaproto.GameRecord{
		GameID:    room.gameID,
		RoomID:    room.ID,
		WhiteID:   room.White,
		BlackID:   room.Black,
		Winner:    res.Winner,
		Reason:    res.Reason,
		MovesUCI:  uci,
		MovesSAN:  san,
		FinalFEN:  room.engine.FEN(),
		StartedAt: room.startedAt,
		EndedAt:   c.opts.Clock(),
	}
	recorder, timeout, log := c.opts.Recorder, c.opts.RecordTimeout, c.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := recorder.Record(ctx, rec); err != nil {
			log.Error("game_record_failed", zap.String("game_id", rec.GameID), zap.Error(err))
			return
		}
		log.Debug("game_recorded", zap.String("game_id", rec.GameID), zap.Int("moves", len(rec.MovesUCI)))
	}()
}
