package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/src/server"
	"github.com/orchestra-mcp/relay/src/tap"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger)
	initTap(srv, logger)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("relay stopped")
}

func newLogger(cfg *config.RelayConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// initTap tries to start the Redis event tap.
// If Redis is not reachable, the relay runs without it.
func initTap(srv *server.Server, logger zerolog.Logger) {
	cfg, err := tap.RedisConfigFromEnv()
	if err != nil {
		logger.Warn().Err(err).Msg("invalid redis tap config, tap disabled")
		return
	}
	if !cfg.Enabled {
		return
	}
	rt := tap.NewRedisTap(cfg, logger)
	if err := rt.Start(); err != nil {
		logger.Warn().Err(err).Msg("redis tap unavailable, running without it")
		_ = rt.Stop()
		return
	}
	srv.AttachTap(rt)
	logger.Info().Str("redis_addr", cfg.Addr).Msg("redis tap connected")
}
