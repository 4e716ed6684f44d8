package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

func resultToken(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "white"
	case "black":
		return "black"
	case "draw":
		return "draw"
	default:
		return "unknown"
	}
}

func resultToPGN(winner string) string {
	switch resultToken(winner) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders a finished game as PGN with numbered SAN moves.
func BuildPGN(rec arenaproto.GameRecord) string {
	result := resultToPGN(rec.Winner)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString("[Site \"cheese-arena\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[Round \"%s\"]\n", sanitizePGN(rec.RoomID))
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(rec.WhiteID))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(rec.BlackID))
	if strings.TrimSpace(rec.Reason) != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(rec.Reason)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s ", i/2+1, strings.TrimSpace(rec.MovesSAN[i]))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
			b.WriteString(" ")
		}
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
