package arenaproto

import "time"

// Move is the inbound move request and the invalidMove echo.
type Move struct {
	From      string `json:"from" validate:"required,square"`
	To        string `json:"to" validate:"required,square,nefield=From"`
	Promotion string `json:"promotion,omitempty" validate:"omitempty,oneof=q r b n"`
}

type PieceCaptured struct {
	CapturedBy   string `json:"capturedBy"`
	CapturedOf   string `json:"capturedOf"`
	CapturedType string `json:"capturedType"`
}

type Check struct {
	ColorInCheck string `json:"colorInCheck"`
}

// GameOver carries the winner ("White", "Black" or "Draw") and the reason.
type GameOver struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

type NoMoves struct {
	SideToMove string `json:"sideToMove"`
}

type RoomClosed struct {
	Reason string `json:"reason"`
}

// RoomSnapshot is a read-only view of one room.
type RoomSnapshot struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	White      string    `json:"white,omitempty"`
	Black      string    `json:"black,omitempty"`
	Spectators int       `json:"spectators"`
	FEN        string    `json:"fen"`
	Turn       string    `json:"turn"`
	InCheck    bool      `json:"inCheck"`
	Winner     string    `json:"winner,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Moves      int       `json:"moves"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GameRecord is one finished game as stored by the archive.
type GameRecord struct {
	GameID    string    `json:"game_id"`
	RoomID    string    `json:"room_id"`
	WhiteID   string    `json:"white_id"`
	BlackID   string    `json:"black_id"`
	Winner    string    `json:"winner"`
	Reason    string    `json:"reason"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	FinalFEN  string    `json:"final_fen"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Duration is the wall time between the first and the final position.
func (r GameRecord) Duration() time.Duration {
	d := r.EndedAt.Sub(r.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
