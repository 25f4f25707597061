// Package rankingqueue runs the ranking module's background jobs on River.
package rankingqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
	rankingmetrics "github.com/Black-And-White-Club/courtrank/internal/observability/metrics/ranking"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

const metricsService = "river"

// Config controls the sweep schedule and queue width.
type Config struct {
	SweepInterval time.Duration
	MaxWorkers    int
	// RunOnStart sweeps once as soon as the client starts.
	RunOnStart bool
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 24 * time.Hour
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 5
	}
	return c
}

// QueueService is the contract the module and CLI use.
type QueueService interface {
	// TriggerSweep enqueues an activity sweep to run now.
	TriggerSweep(ctx context.Context, asOf time.Time, requestedBy string) (int64, error)
	// HealthCheck verifies the queue's database is reachable.
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service owns a River client and the pgx pool it runs on.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics rankingmetrics.RankingMetrics
}

// NewService connects to dsn and builds a River client with the activity
// sweep registered as a periodic job. Passing a nil publisher builds an
// insert-only client that runs no workers.
func NewService(ctx context.Context, dsn string, cfg Config, logger *slog.Logger, metrics rankingmetrics.RankingMetrics, finder ShortfallFinder, publisher message.Publisher) (*Service, error) {
	if metrics == nil {
		metrics = rankingmetrics.NewNoop()
	}
	cfg = cfg.withDefaults()

	ctxLogger := logger.With(
		attr.String("operation", "new_ranking_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", metricsService)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	riverConfig := &river.Config{Logger: logger}
	if publisher != nil {
		workers := river.NewWorkers()
		river.AddWorker(workers, NewActivitySweepWorker(ctxLogger, finder, publisher))

		riverConfig.Workers = workers
		riverConfig.Queues = map[string]river.QueueConfig{
			QueueName: {MaxWorkers: cfg.MaxWorkers},
		}
		riverConfig.PeriodicJobs = []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return ActivitySweepJob{Requested: "schedule"}, &river.InsertOpts{Queue: QueueName}
				},
				&river.PeriodicJobOpts{RunOnStart: cfg.RunOnStart},
			),
		}
	}

	client, err := river.NewClient(riverpgxv5.New(pool), riverConfig)
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricsService)
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", metricsService)
	metrics.RecordOperationDuration(ctx, "initialize_service", metricsService, time.Since(start))

	ctxLogger.Info("Ranking queue service initialized",
		attr.Duration("sweep_interval", cfg.SweepInterval),
		attr.Bool("workers", publisher != nil),
	)

	return &Service{
		client:  client,
		pool:    pool,
		logger:  ctxLogger,
		metrics: metrics,
	}, nil
}

// Start starts working jobs.
func (s *Service) Start(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "start_service", metricsService)
	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", metricsService)
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "start_service", metricsService)
	s.logger.Info("Ranking queue service started")
	return nil
}

// Stop waits for running jobs, then closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	defer s.pool.Close()

	s.metrics.RecordOperationAttempt(ctx, "stop_service", metricsService)
	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", metricsService)
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "stop_service", metricsService)
	s.logger.Info("Ranking queue service stopped")
	return nil
}

// Close releases the pool of a client that was never started.
func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) TriggerSweep(ctx context.Context, asOf time.Time, requestedBy string) (int64, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "trigger_sweep", metricsService)

	res, err := s.client.Insert(ctx, ActivitySweepJob{AsOf: asOf, Requested: requestedBy}, &river.InsertOpts{
		Queue: QueueName,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Minute,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue activity sweep", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "trigger_sweep", metricsService)
		return 0, fmt.Errorf("failed to enqueue activity sweep: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "trigger_sweep", metricsService)
	s.metrics.RecordOperationDuration(ctx, "trigger_sweep", metricsService, time.Since(start))

	s.logger.InfoContext(ctx, "Activity sweep enqueued",
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
	)
	return res.Job.ID, nil
}

// RecentSweeps lists the newest sweep jobs, most recent first.
func (s *Service) RecentSweeps(ctx context.Context, limit int) ([]JobInfo, error) {
	params := river.NewJobListParams().
		Kinds(activitySweepKind).
		OrderBy(river.JobListOrderByID, river.SortOrderDesc).
		First(max(limit, 1))

	res, err := s.client.JobList(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep jobs: %w", err)
	}

	out := make([]JobInfo, 0, len(res.Jobs))
	for _, j := range res.Jobs {
		out = append(out, JobInfo{
			ID:          j.ID,
			Kind:        j.Kind,
			State:       string(j.State),
			ScheduledAt: j.ScheduledAt.Format(time.RFC3339),
			Attempt:     j.Attempt,
			MaxAttempts: j.MaxAttempts,
		})
	}
	return out, nil
}

func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("queue database unreachable: %w", err)
	}
	return nil
}
