package rankingrouter

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	rankinghandlers "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/handlers"
	"github.com/Black-And-White-Club/courtrank/internal/eventbus"
	"github.com/Black-And-White-Club/courtrank/internal/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"
)

// RankingRouter handles routing for ranking module events.
type RankingRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     eventbus.EventBus
	publisher      eventbus.EventBus
	tracer         trace.Tracer
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewRankingRouter creates a new RankingRouter. Router metrics are recorded
// on prometheusRegistry unless it is nil or APP_ENV is "test".
func NewRankingRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	tracer trace.Tracer,
	prometheusRegistry prometheus.Registerer,
) *RankingRouter {
	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil && os.Getenv(TestEnvironmentFlag) != TestEnvironmentValue {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "courtrank", "ranking")
		metricsBuilder = &builder
	}
	return &RankingRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		publisher:      publisher,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
	}
}

// Configure adds the middleware chain and registers every ranking handler.
func (r *RankingRouter) Configure(routerCtx context.Context, handlers rankinghandlers.Handlers) error {
	if r.metricsBuilder != nil {
		r.logger.InfoContext(routerCtx, "Adding Prometheus router metrics middleware")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	} else {
		r.logger.InfoContext(routerCtx, "Skipping Prometheus router metrics middleware - either in test environment or metrics not configured")
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		middleware.Retry{MaxRetries: 3}.Middleware,
	)

	if err := r.RegisterHandlers(routerCtx, handlers); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	return nil
}

type handlerDeps struct {
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	logger     *slog.Logger
	tracer     trace.Tracer
}

// registerHandler registers a transformation handler with a typed payload.
// Produced messages are routed by their topic metadata.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "ranking." + topic

	deps.router.AddHandler(
		handlerName,
		topic,
		deps.subscriber,
		"",
		deps.publisher,
		handlerwrapper.WrapTransformingTyped(
			handlerName,
			deps.logger,
			deps.tracer,
			handler,
		),
	)
}

// RegisterHandlers registers the inbound ranking topics.
func (r *RankingRouter) RegisterHandlers(ctx context.Context, handlers rankinghandlers.Handlers) error {
	deps := handlerDeps{
		router:     r.Router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
	}

	registerHandler(deps, rankingevents.MatchSubmittedV1, handlers.HandleMatchSubmitted)
	registerHandler(deps, rankingevents.PlayerProfileUpdatedV1, handlers.HandlePlayerProfileUpdated)
	registerHandler(deps, rankingevents.LeaderboardRequestedV1, handlers.HandleLeaderboardRequested)
	registerHandler(deps, rankingevents.PositionRequestedV1, handlers.HandlePositionRequested)

	r.logger.InfoContext(ctx, "Ranking handlers registered", slog.Int("count", 4))
	return nil
}

// Close stops the router.
func (r *RankingRouter) Close() error {
	return r.Router.Close()
}
