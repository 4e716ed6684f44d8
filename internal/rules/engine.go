// Package rules wraps the chess rules library behind the narrow engine
// contract the session coordinator needs.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrInvalidPosition = errors.New("invalid position")
	ErrGameFinished    = errors.New("game already finished")
)

// Side is the color to move, encoded the way clients receive it.
type Side string

const (
	White Side = "w"
	Black Side = "b"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Long returns "white" or "black".
func (s Side) Long() string {
	if s == White {
		return "white"
	}
	return "black"
}

// Title returns "White" or "Black".
func (s Side) Title() string {
	if s == White {
		return "White"
	}
	return "Black"
}

// MoveSpec is a move request in square notation. Promotion is one of q r b n or empty.
type MoveSpec struct {
	From      string
	To        string
	Promotion string
}

// MoveResult describes an applied move.
type MoveResult struct {
	UCI      string
	SAN      string
	Side     Side
	Captured string // piece letter (p n b r q), empty when nothing was taken
}

// Engine holds exactly one board position.
type Engine interface {
	LoadPosition(fen string) error
	Turn() Side
	Apply(spec MoveSpec) (MoveResult, error)
	InCheck() bool
	IsCheckmate() bool
	IsStalemate() bool
	IsDraw() bool
	LegalMoveCount() int
	FEN() string
	History() (uci []string, san []string)
}

// Factory builds a fresh engine at the initial position.
type Factory func() Engine

// New returns an engine at the standard initial position.
func New() Engine {
	return &chessEngine{game: nchess.NewGame()}
}

type chessEngine struct {
	game    *nchess.Game
	inCheck bool
	uci     []string
	san     []string
}

func (e *chessEngine) LoadPosition(fen string) error {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		e.game = nchess.NewGame()
		e.reset()
		return nil
	}
	option, err := nchess.FEN(fen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	e.game = nchess.NewGame(option)
	e.reset()
	e.inCheck = kingAttacked(e.game.FEN(), e.game.Position())
	return nil
}

func (e *chessEngine) reset() {
	e.inCheck = false
	e.uci = nil
	e.san = nil
}

func (e *chessEngine) Turn() Side {
	return sideOf(e.game.Position().Turn())
}

func (e *chessEngine) Apply(spec MoveSpec) (MoveResult, error) {
	if e.game.Outcome() != nchess.NoOutcome {
		return MoveResult{}, ErrGameFinished
	}
	from, okFrom := parseSquare(spec.From)
	to, okTo := parseSquare(spec.To)
	if !okFrom || !okTo {
		return MoveResult{}, fmt.Errorf("%w: bad square %q-%q", ErrIllegalMove, spec.From, spec.To)
	}

	before := e.game.Position()
	mover := sideOf(before.Turn())
	promo := strings.ToLower(strings.TrimSpace(spec.Promotion))
	if promotes(before, from, to) {
		if promo == "" {
			promo = "q"
		}
	} else {
		promo = ""
	}

	uci := strings.ToLower(spec.From+spec.To) + promo
	if err := e.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return MoveResult{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	last := lastMove(e.game)
	if last == nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}

	res := MoveResult{
		UCI:      uci,
		SAN:      nchess.AlgebraicNotation{}.Encode(before, last),
		Side:     mover,
		Captured: capturedKind(before, last),
	}
	e.inCheck = last.HasTag(nchess.Check)
	e.uci = append(e.uci, res.UCI)
	e.san = append(e.san, res.SAN)
	return res, nil
}

func (e *chessEngine) InCheck() bool { return e.inCheck }

func (e *chessEngine) IsCheckmate() bool {
	return e.game.Outcome() != nchess.NoOutcome && e.game.Method() == nchess.Checkmate
}

func (e *chessEngine) IsStalemate() bool {
	return e.game.Outcome() == nchess.Draw && e.game.Method() == nchess.Stalemate
}

// IsDraw reports the automatic draws (insufficient material, fivefold
// repetition, seventy-five move rule). Stalemate is reported separately.
func (e *chessEngine) IsDraw() bool {
	return e.game.Outcome() == nchess.Draw && e.game.Method() != nchess.Stalemate
}

func (e *chessEngine) LegalMoveCount() int {
	if e.game.Outcome() != nchess.NoOutcome {
		return 0
	}
	return len(e.game.ValidMoves())
}

func (e *chessEngine) FEN() string { return e.game.FEN() }

func (e *chessEngine) History() ([]string, []string) {
	return append([]string(nil), e.uci...), append([]string(nil), e.san...)
}

func sideOf(c nchess.Color) Side {
	if c == nchess.Black {
		return Black
	}
	return White
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
