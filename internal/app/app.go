package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	applog "github.com/vovakirdan/wirechat-dm/internal/log"
	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
	"github.com/vovakirdan/wirechat-dm/internal/service/readstate"
	"github.com/vovakirdan/wirechat-dm/internal/store"
	"github.com/vovakirdan/wirechat-dm/internal/store/badger"
	"github.com/vovakirdan/wirechat-dm/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-dm/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().
		Str("store_driver", cfg.StoreDriver).
		Str("db_path", cfg.DatabasePath).
		Msg("message store initialized")

	msgs := messages.New(st, cfg.MaxContentLength)
	tracker := readstate.New(st)

	hub := core.NewHub(applog.Component(logger, "presence"))
	relay := core.NewRelay(hub, msgs, tracker, applog.Component(logger, "relay"))
	gateway := core.NewGateway(hub, relay, cfg.SendBuffer, applog.Component(logger, "gateway"))

	server := transporthttp.NewServer(transporthttp.Services{
		Hub:      hub,
		Gateway:  gateway,
		Relay:    relay,
		Messages: msgs,
		Tracker:  tracker,
	}, cfg, applog.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		return sqlite.New(cfg.DatabasePath)
	case config.StoreDriverBadger:
		return badger.New(cfg.DatabasePath, applog.Component(logger, "badger"))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	// live connections are hijacked and outlive Shutdown; tie them to ctx
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
