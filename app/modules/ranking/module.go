package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingservice "github.com/Black-And-White-Club/courtrank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankinghandlers "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/handlers"
	rankingqueue "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/queue"
	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	rankingrouter "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/router"
	"github.com/Black-And-White-Club/courtrank/config"
	"github.com/Black-And-White-Club/courtrank/internal/eventbus"
	"github.com/Black-And-White-Club/courtrank/internal/observability"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

// Module represents the ranking module.
type Module struct {
	EventBus       eventbus.EventBus
	RankingService rankingservice.Service
	RankingRouter  *rankingrouter.RankingRouter
	Queue          *rankingqueue.Service
	logger         *slog.Logger
	config         *config.Config
	cancelFunc     context.CancelFunc
}

// NewRankingModule wires the ranking service to the event router and, when
// httpRouter is non-nil, to the HTTP API. A nil db selects the in-memory
// store.
func NewRankingModule(
	ctx context.Context,
	cfg *config.Config,
	obs observability.Observability,
	db *bun.DB,
	eventBus eventbus.EventBus,
	router *message.Router,
	httpRouter chi.Router,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer

	logger.InfoContext(ctx, "Initializing ranking module")

	service, err := NewService(ctx, cfg, obs, db)
	if err != nil {
		return nil, err
	}
	handlers := rankinghandlers.NewRankingHandlers(service, logger, tracer)

	var registry prometheus.Registerer
	if obs.Registry.Prometheus != nil {
		registry = obs.Registry.Prometheus
	}
	rankingRouter := rankingrouter.NewRankingRouter(logger, router, eventBus, eventBus, tracer, registry)
	if err := rankingRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure ranking router: %w", err)
	}

	if httpRouter != nil {
		limiter := rankinghandlers.NewIPRateLimiter(rate.Limit(cfg.HTTP.RatePerSecond), cfg.HTTP.RateBurst)
		rankinghandlers.Routes(httpRouter, handlers, limiter, cfg.HTTP.AllowedOrigins)
	}

	module := &Module{
		EventBus:       eventBus,
		RankingService: service,
		RankingRouter:  rankingRouter,
		logger:         logger,
		config:         cfg,
	}

	if cfg.Queue.Enabled {
		if cfg.Postgres.DSN == "" {
			logger.WarnContext(ctx, "Activity sweep needs a database, queue disabled")
		} else {
			queue, err := rankingqueue.NewService(ctx, cfg.Postgres.DSN, rankingqueue.Config{
				SweepInterval: cfg.Queue.SweepInterval,
				MaxWorkers:    cfg.Queue.MaxWorkers,
				RunOnStart:    cfg.Queue.RunOnStart,
			}, logger, obs.Registry.RankingMetrics, service, eventBus)
			if err != nil {
				return nil, fmt.Errorf("failed to create ranking queue: %w", err)
			}
			module.Queue = queue
		}
	}

	return module, nil
}

// NewService builds the ranking service from cfg. A nil db selects the
// in-memory store.
func NewService(ctx context.Context, cfg *config.Config, obs observability.Observability, db *bun.DB) (*rankingservice.RankingService, error) {
	logger := obs.Provider.Logger

	catalog, err := cfg.Ranking.TierCatalog()
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		logger.WarnContext(ctx, "Ranking module running without a tier catalog",
			slog.Bool("strict", cfg.Ranking.StrictTierCatalog),
		)
	}
	resolver := rankingdomain.NewTierResolver(catalog, cfg.Ranking.StrictTierCatalog)

	var repo rankingdb.Repository
	if db != nil {
		repo = rankingdb.NewRepository(db)
	} else {
		logger.WarnContext(ctx, "No database configured, ranking state is kept in memory")
		repo = rankingdb.NewMemoryRepository()
	}

	agg := rankingaggregator.New(rankingaggregator.Config{
		MinLeaderboardPlayers: cfg.Ranking.MinLeaderboardPlayers,
		MinMatchesForPosition: cfg.Ranking.MinMatchesForPosition,
		MaxUpdateRetries:      cfg.Ranking.MaxUpdateRetries,
	}, logger, obs.Registry.RankingMetrics)

	return rankingservice.NewRankingService(repo, agg, resolver, logger, obs.Registry.RankingMetrics, obs.Registry.Tracer, db), nil
}

// Run starts the queue and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.Info("Starting ranking module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.Queue != nil {
		if err := m.Queue.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to start ranking queue", slog.String("error", err.Error()))
			return
		}
	}

	<-ctx.Done()
	m.logger.Info("Ranking module goroutine stopped")
}

// Close stops the queue, waiting briefly for a running sweep.
func (m *Module) Close() error {
	m.logger.Info("Stopping ranking module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.Queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.Queue.Stop(ctx); err != nil {
			return fmt.Errorf("error stopping ranking queue: %w", err)
		}
	}

	m.logger.Info("Ranking module stopped")
	return nil
}
