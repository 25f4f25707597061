package rankingservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	"github.com/Black-And-White-Club/courtrank/app/modules/ranking/application/parsers"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/courtrank/internal/keylock"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
	rankingmetrics "github.com/Black-And-White-Club/courtrank/internal/observability/metrics/ranking"
	"github.com/Black-And-White-Club/courtrank/internal/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "RankingService"

// RankingService implements the Service interface.
type RankingService struct {
	repo       rankingdb.Repository
	aggregator *rankingaggregator.Aggregator
	resolver   *rankingdomain.TierResolver
	parsers    parsers.ParserFactory
	logger     *slog.Logger
	metrics    rankingmetrics.RankingMetrics
	tracer     trace.Tracer
	db         *bun.DB
	matchLocks keylock.Locks[string]
	now        func() time.Time
}

// NewRankingService creates a new RankingService. A nil db runs operations
// without a transaction, which is what the in-memory repository expects.
func NewRankingService(
	repo rankingdb.Repository,
	aggregator *rankingaggregator.Aggregator,
	resolver *rankingdomain.TierResolver,
	logger *slog.Logger,
	metrics rankingmetrics.RankingMetrics,
	tracer trace.Tracer,
	db *bun.DB,
) *RankingService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = rankingmetrics.NewNoop()
	}
	return &RankingService{
		repo:       repo,
		aggregator: aggregator,
		resolver:   resolver,
		parsers:    parsers.NewFactory(),
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		db:         db,
		now:        time.Now,
	}
}

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *RankingService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	span := trace.SpanFromContext(ctx)
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
		defer span.End()
	}

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.InfoContext(ctx, operationName+" triggered",
		attr.String("operation", operationName),
		attr.String("identifier", identifier),
		attr.ExtractCorrelationID(ctx),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.String("identifier", identifier),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, operationName+" completed successfully",
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.ExtractCorrelationID(ctx),
		)
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// runInTx ensures the operation runs within a transaction. Without a
// database the operation runs against a staged repository when the
// repository supports it, and its writes are committed together.
func runInTx[S any, F any](
	s *RankingService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB, repo rankingdb.Repository) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		stager, ok := s.repo.(rankingdb.Stager)
		if !ok {
			return fn(ctx, nil, s.repo)
		}
		staged := stager.Stage()
		result, err := fn(ctx, nil, staged)
		if err != nil || result.IsFailure() {
			return result, err
		}
		if err := staged.Commit(ctx); err != nil {
			return results.OperationResult[S, F]{}, err
		}
		return result, nil
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx, s.repo)
		if txErr == nil && result.IsFailure() {
			// A failure result must not leave partial writes behind.
			return errRollback
		}
		return txErr
	})
	if errors.Is(err, errRollback) {
		err = nil
	}

	return result, err
}
