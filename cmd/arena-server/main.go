package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/arena"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/gateway"
	"github.com/park285/cheese-arena/internal/httpapi"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		ToConsole: cfg.Log.ToConsole,
		ToFile:    cfg.Log.ToFile,
		File:      cfg.Log.File,
		Caller:    cfg.Log.Caller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	texts, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		recorders archive.Fanout
		results   httpapi.ResultReader
	)
	if cfg.RedisURL != "" {
		rdb, err := archive.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis archive", zap.Error(err))
		}
		defer func(c *redis.Client) { _ = c.Close() }(rdb)
		store := archive.NewRedisStore(rdb, cfg.ResultTTL, cfg.ResultLimit)
		recorders = append(recorders, store)
		results = store
	}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres archive", zap.Error(err))
		}
		defer func() { _ = repo.Close() }()
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal("postgres schema", zap.Error(err))
		}
		recorders = append(recorders, repo)
	}

	opts := arena.Options{
		ResetDelay: cfg.ResetDelay,
		RoomLimit:  cfg.RoomLimit,
		Texts:      texts,
		Logger:     logger,
	}
	if len(recorders) > 0 {
		opts.Recorder = recorders
	}
	coord := arena.NewCoordinator(opts)
	arenaDone := make(chan error, 1)
	go func() { arenaDone <- coord.Run(ctx) }()

	gw := gateway.New(coord, gateway.Options{
		EgressBuffer:   cfg.EgressBuffer,
		PingInterval:   cfg.PingInterval,
		ReadLimit:      cfg.ReadLimit,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	router := httpapi.NewRouter(httpapi.Deps{Rooms: coord, Results: results, WS: gw, Logger: logger})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Info("http_listen", zap.String("addr", srv.Addr), zap.Int("archives", len(recorders)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
	if err := <-arenaDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("arena_stop", zap.Error(err))
	}
}
