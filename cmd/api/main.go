package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/userapi/internal/app"
	"example.com/userapi/internal/config"
	"example.com/userapi/internal/logger"
	"example.com/userapi/internal/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With().Str("env", cfg.Env).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
}

// run serves until ctx is done, then shuts the server down and closes
// storage.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	srv := server.New(cfg.HTTPAddr, a.Router, server.Timeouts{Read: cfg.ReadTimeout, Write: cfg.WriteTimeout})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.Storage).Msg("listening")
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Stop(sctx)
	})

	err = g.Wait()
	if cerr := a.Close(); cerr != nil {
		log.Error().Err(cerr).Msg("close storage")
		if err == nil {
			err = cerr
		}
	}
	return err
}
