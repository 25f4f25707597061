// Package app assembles the courtrank process: configuration, observability,
// storage, the event bus and the ranking module.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Black-And-White-Club/courtrank/app/modules/ranking"
	"github.com/Black-And-White-Club/courtrank/config"
	"github.com/Black-And-White-Club/courtrank/internal/eventbus"
	"github.com/Black-And-White-Club/courtrank/internal/observability"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const appName = "courtrank"

// App holds every long-lived component of the process.
type App struct {
	Config        *config.Config
	Observability observability.Observability
	Logger        *slog.Logger
	DB            *bun.DB
	EventBus      eventbus.EventBus
	Router        *message.Router
	HTTPServer    *http.Server
	RankingModule *ranking.Module

	wg sync.WaitGroup
}

// Initialize builds the components described by cfg. Nothing is started.
func (app *App) Initialize(ctx context.Context, cfg *config.Config) error {
	app.Config = cfg

	obs, err := observability.Init(ctx, observability.Config{
		ServiceName:    appName,
		Environment:    cfg.Observability.Environment,
		LogLevel:       cfg.Observability.LogLevel,
		MetricsAddress: cfg.Observability.MetricsAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	app.Observability = obs
	app.Logger = obs.Provider.Logger

	if cfg.Postgres.DSN != "" {
		app.DB = OpenDB(cfg.Postgres.DSN)
		if err := app.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to reach database: %w", err)
		}
	}

	bus, err := newEventBus(ctx, cfg, app.Logger)
	if err != nil {
		return err
	}
	app.EventBus = bus

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(app.Logger))
	if err != nil {
		return fmt.Errorf("failed to create Watermill router: %w", err)
	}
	app.Router = router

	httpRouter := chi.NewRouter()
	httpRouter.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	httpRouter.Get("/healthz", app.handleHealth)

	module, err := ranking.NewRankingModule(ctx, cfg, obs, app.DB, bus, router, httpRouter)
	if err != nil {
		return fmt.Errorf("failed to initialize ranking module: %w", err)
	}
	app.RankingModule = module

	app.HTTPServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	app.Logger.InfoContext(ctx, "Application initialized",
		slog.Bool("database", app.DB != nil),
		slog.Bool("nats", cfg.NATS.URL != ""),
		slog.Bool("queue", module.Queue != nil),
	)
	return nil
}

// Run starts the router, module and HTTP server and blocks until ctx is done.
func (app *App) Run(ctx context.Context) error {
	app.wg.Add(1)
	go app.RankingModule.Run(ctx, &app.wg)

	routerErr := make(chan error, 1)
	go func() {
		if err := app.Router.Run(ctx); err != nil {
			routerErr <- fmt.Errorf("watermill router stopped: %w", err)
		}
	}()

	httpErr := make(chan error, 1)
	go func() {
		app.Logger.Info("HTTP server listening", slog.String("address", app.HTTPServer.Addr))
		if err := app.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server stopped: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-routerErr:
		return err
	case err := <-httpErr:
		return err
	}
}

// Close shuts components down in reverse start order.
func (app *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if app.HTTPServer != nil {
		errs = append(errs, app.HTTPServer.Shutdown(ctx))
	}
	if app.RankingModule != nil {
		errs = append(errs, app.RankingModule.Close())
	}
	app.wg.Wait()
	if app.Router != nil {
		errs = append(errs, app.Router.Close())
	}
	if app.EventBus != nil {
		errs = append(errs, app.EventBus.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}
	errs = append(errs, app.Observability.Shutdown(ctx))

	logger := app.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := errors.Join(errs...); err != nil {
		logger.Error("Errors during shutdown", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Application shut down")
	return nil
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.EventBus.Healthy(ctx); err != nil {
		http.Error(w, "event bus: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if app.DB != nil {
		if err := app.DB.PingContext(ctx); err != nil {
			http.Error(w, "database: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// OpenDB returns a bun handle over pgdriver. The connection is lazy.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func newEventBus(ctx context.Context, cfg *config.Config, logger *slog.Logger) (eventbus.EventBus, error) {
	switch {
	case cfg.NATS.URL == "":
		logger.WarnContext(ctx, "No NATS URL configured, using the in-process event bus")
		return eventbus.NewGoChannelEventBus(logger), nil
	case cfg.NATS.JetStream:
		bus, err := eventbus.NewJetStreamEventBus(ctx, cfg.NATS.URL, appName, cfg.NATS.Stream, "ranking", logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream event bus: %w", err)
		}
		return bus, nil
	default:
		bus, err := eventbus.NewNATSEventBus(ctx, cfg.NATS.URL, appName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS event bus: %w", err)
		}
		return bus, nil
	}
}
