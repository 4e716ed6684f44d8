package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type AppConfig struct {
	Port string `env:"PORT" envDefault:"3000" validate:"required,numeric"`

	ResetDelay   time.Duration `env:"ARENA_RESET_DELAY" envDefault:"5s" validate:"gt=0"`
	RoomLimit    int           `env:"ARENA_ROOM_LIMIT" envDefault:"64" validate:"gte=0"`
	EgressBuffer int           `env:"ARENA_EGRESS_BUFFER" envDefault:"64" validate:"gt=0"`
	PingInterval time.Duration `env:"ARENA_PING_INTERVAL" envDefault:"30s" validate:"gt=0"`
	ReadLimit    int64         `env:"ARENA_READ_LIMIT" envDefault:"4096" validate:"gte=256"`

	AllowedOrigins []string `env:"ARENA_ALLOWED_ORIGINS" envSeparator:","`
	MessagesDir    string   `env:"ARENA_MESSAGES_DIR"`

	RedisURL    string        `env:"REDIS_URL" validate:"omitempty,url"`
	DatabaseURL string        `env:"DATABASE_URL"`
	ResultTTL   time.Duration `env:"ARENA_RESULT_TTL" envDefault:"24h" validate:"gt=0"`
	ResultLimit int           `env:"ARENA_RESULT_LIMIT" envDefault:"100" validate:"gt=0"`

	Log LogConfig
}

type LogConfig struct {
	Level     string `env:"LOG_LEVEL" envDefault:"info"`
	Format    string `env:"LOG_FORMAT" envDefault:"legacy" validate:"oneof=legacy json console"`
	ToConsole bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile    bool   `env:"LOG_TO_FILE" envDefault:"false"`
	File      string `env:"LOG_FILE" envDefault:"logs/arena.log"`
	Caller    bool   `env:"LOG_CALLER" envDefault:"false"`
}

// Load reads the process environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.Port = strings.TrimSpace(c.Port)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	c.AllowedOrigins = origins
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string { return ":" + c.Port }
