package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

const schema = `CREATE TABLE IF NOT EXISTS arena_games (
    game_id     TEXT PRIMARY KEY,
    room_id     TEXT NOT NULL,
    white_id    TEXT NOT NULL,
    black_id    TEXT NOT NULL,
    result      TEXT NOT NULL,
    reason      TEXT NOT NULL,
    moves_uci   JSONB NOT NULL,
    moves_san   JSONB NOT NULL,
    pgn         TEXT NOT NULL,
    final_fen   TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

// Repository is the durable Postgres archive.
type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// EnsureSchema creates the results table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Record upserts one finished game.
func (r *Repository) Record(ctx context.Context, rec arenaproto.GameRecord) error {
	if strings.TrimSpace(rec.GameID) == "" {
		return ErrMissingGameID
	}
	result := resultToken(rec.Winner)
	movesUCI, movesSAN, err := encodeMoves(rec)
	if err != nil {
		return fmt.Errorf("postgres record %s: %w", rec.GameID, err)
	}

	q := `INSERT INTO arena_games (
        game_id, room_id, white_id, black_id, result, reason,
        moves_uci, moves_san, pgn, final_fen, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
      ) ON CONFLICT (game_id) DO UPDATE SET
        room_id=EXCLUDED.room_id,
        white_id=EXCLUDED.white_id,
        black_id=EXCLUDED.black_id,
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        final_fen=EXCLUDED.final_fen,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		rec.GameID, rec.RoomID, rec.WhiteID, rec.BlackID,
		result, rec.Reason,
		movesUCI, movesSAN,
		BuildPGN(rec), rec.FinalFEN,
		rec.StartedAt, rec.EndedAt, rec.Duration().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres record %s: %w", rec.GameID, err)
	}
	return nil
}

// encodeMoves renders both move lists as JSON arrays for the jsonb columns.
func encodeMoves(rec arenaproto.GameRecord) (uci, san string, err error) {
	u, err := json.Marshal(nonNil(rec.MovesUCI))
	if err != nil {
		return "", "", fmt.Errorf("encode uci moves: %w", err)
	}
	s, err := json.Marshal(nonNil(rec.MovesSAN))
	if err != nil {
		return "", "", fmt.Errorf("encode san moves: %w", err)
	}
	return string(u), string(s), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
