// Package archive stores finished games.
package archive

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

const (
	defaultTTL   = 24 * time.Hour
	defaultLimit = 100
	keyPrefix    = "arena:"
)

// RedisStore keeps recent results: one JSON value per game plus a capped
// newest-first list of game ids. Both expire after ttl.
type RedisStore struct {
	rdb   *redis.Client
	ttl   time.Duration
	limit int64
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, limit int) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &RedisStore{rdb: rdb, ttl: ttl, limit: int64(limit)}
}

// DialRedis parses a redis:// or rediss:// URL and pings the server.
func DialRedis(ctx context.Context, raw string) (*redis.Client, error) {
	opts, err := ParseRedisURL(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad redis db %q: %w", p, err)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: u.Hostname(), MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

func gameKey(id string) string { return keyPrefix + "game:" + strings.TrimSpace(id) }
func recentKey() string        { return keyPrefix + "results" }

func (s *RedisStore) Record(ctx context.Context, rec arenaproto.GameRecord) error {
	if strings.TrimSpace(rec.GameID) == "" {
		return ErrMissingGameID
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, gameKey(rec.GameID), raw, s.ttl)
	pipe.LRem(ctx, recentKey(), 0, rec.GameID)
	pipe.LPush(ctx, recentKey(), rec.GameID)
	pipe.LTrim(ctx, recentKey(), 0, s.limit-1)
	pipe.Expire(ctx, recentKey(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record %s: %w", rec.GameID, err)
	}
	return nil
}

// Load returns one game, or nil when it expired or never existed.
func (s *RedisStore) Load(ctx context.Context, gameID string) (*arenaproto.GameRecord, error) {
	raw, err := s.rdb.Get(ctx, gameKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec arenaproto.GameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns up to n games, newest first. Expired entries are skipped.
func (s *RedisStore) Recent(ctx context.Context, n int) ([]arenaproto.GameRecord, error) {
	if n <= 0 || int64(n) > s.limit {
		n = int(s.limit)
	}
	ids, err := s.rdb.LRange(ctx, recentKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]arenaproto.GameRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}
