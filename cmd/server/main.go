package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsechat/pulse/api"
	"github.com/pulsechat/pulse/api/validator"
	"github.com/pulsechat/pulse/config"
	"github.com/pulsechat/pulse/postgres"
	"github.com/pulsechat/pulse/redis"
	"github.com/pulsechat/pulse/sweeper"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(context.Background(), logger); err != nil {
		logger.Error("Server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("PULSE_CONFIG"))
	if err != nil {
		return err
	}

	pg, err := postgres.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}

	a := &api.API{
		Logger:       logger,
		DB:           pg,
		Presence:     rdb,
		Events:       rdb,
		Val:          validator.New(),
		TypingWindow: cfg.Typing.LivenessWindow,
	}
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: a,
	}
	sw := &sweeper.Sweeper{
		Logger:   logger,
		Store:    rdb,
		Interval: cfg.Typing.SweepInterval,
		Window:   cfg.Typing.SweepWindow,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := sw.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}
