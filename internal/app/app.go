package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"example.com/userapi/internal/config"
	httphandlers "example.com/userapi/internal/handler/http"
	"example.com/userapi/internal/repository"
	"example.com/userapi/internal/storage/memory"
	sqlstore "example.com/userapi/internal/storage/sql"
	"example.com/userapi/internal/usecase"
)

type App struct {
	Config  config.Config
	Router  http.Handler
	Users   *usecase.UserService
	Store   repository.UserStore
	log     zerolog.Logger
	closers []func() error
}

// New builds the application for the configured storage backend. With file
// storage the users file is read here and written back by Close.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}
	switch cfg.Storage {
	case config.StorageSQL:
		store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN,
			sqlstore.WithLogger(log.With().Str("component", "sql").Logger()),
			sqlstore.WithSlowQueryThreshold(cfg.DBSlowQuery),
		)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("sql storage ready")
		a.Store = store
		a.closers = append(a.closers, store.Close)
	case config.StorageFile:
		store := loadUsersFile(cfg.DataFile, log)
		a.Store = store
		a.closers = append(a.closers, func() error {
			return flushUsersFile(cfg.DataFile, store, log)
		})
	default:
		a.Store = memory.New()
	}
	a.Users = usecase.NewUserService(a.Store, log)
	a.Router = httphandlers.New(a.Users, log)
	return a, nil
}

// Close releases the storage backend, flushing the users file first when
// file storage is in use.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
