package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var pieceLetters = map[nchess.PieceType]string{
	nchess.King:   "k",
	nchess.Queen:  "q",
	nchess.Rook:   "r",
	nchess.Bishop: "b",
	nchess.Knight: "n",
	nchess.Pawn:   "p",
}

// ValidSquare reports whether s names a board square such as "e4".
func ValidSquare(s string) bool {
	_, ok := parseSquare(s)
	return ok
}

func parseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return nchess.NoSquare, false
	}
	if s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

// promotes reports whether moving the piece on from to to is a pawn reaching the last rank.
func promotes(pos *nchess.Position, from, to nchess.Square) bool {
	piece := pos.Board().Piece(from)
	if piece == nchess.NoPiece || piece.Type() != nchess.Pawn {
		return false
	}
	if piece.Color() == nchess.White {
		return to.Rank() == nchess.Rank8
	}
	return to.Rank() == nchess.Rank1
}

// capturedKind inspects the position before mv and returns the letter of the taken piece.
func capturedKind(before *nchess.Position, mv *nchess.Move) string {
	if !mv.HasTag(nchess.Capture) && !mv.HasTag(nchess.EnPassant) {
		return ""
	}
	target := mv.S2()
	if mv.HasTag(nchess.EnPassant) {
		if before.Turn() == nchess.White {
			target = nchess.NewSquare(target.File(), target.Rank()-1)
		} else {
			target = nchess.NewSquare(target.File(), target.Rank()+1)
		}
	}
	piece := before.Board().Piece(target)
	if piece == nchess.NoPiece {
		return ""
	}
	return pieceLetters[piece.Type()]
}

// kingAttacked reports whether the side to move in pos is in check. The
// library exposes check only as a move tag, so the side to move is flipped
// and the opponent's replies are searched for one landing on the king.
func kingAttacked(fen string, pos *nchess.Position) bool {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return false
	}
	turn := pos.Turn()
	king := findKing(pos, turn)
	if king == nchess.NoSquare {
		return false
	}
	if turn == nchess.White {
		fields[1] = "b"
	} else {
		fields[1] = "w"
	}
	fields[3] = "-"
	option, err := nchess.FEN(strings.Join(fields, " "))
	if err != nil {
		return false
	}
	flipped := nchess.NewGame(option)
	for _, mv := range flipped.ValidMoves() {
		if mv.S2() == king {
			return true
		}
	}
	return false
}

func findKing(pos *nchess.Position, color nchess.Color) nchess.Square {
	board := pos.Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			sq := nchess.NewSquare(file, rank)
			piece := board.Piece(sq)
			if piece != nchess.NoPiece && piece.Type() == nchess.King && piece.Color() == color {
				return sq
			}
		}
	}
	return nchess.NoSquare
}
