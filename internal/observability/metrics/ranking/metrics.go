// Package rankingmetrics defines the metrics recorded by the ranking module.
package rankingmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RankingMetrics is the instrument set used by the ranking service, handlers
// and queue.
type RankingMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
	RecordPointsAllocated(ctx context.Context, format, ageDivision string, points int)
	RecordUpdateConflict(ctx context.Context, format string)
	RecordLeaderboardGated(ctx context.Context, format, ageDivision string)
}

type prometheusMetrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	points    *prometheus.HistogramVec
	conflicts *prometheus.CounterVec
	gated     *prometheus.CounterVec
}

// NewPrometheus registers the ranking instruments on reg.
func NewPrometheus(reg prometheus.Registerer) (RankingMetrics, error) {
	m := &prometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtrank",
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtrank",
			Name:      "operation_success_total",
			Help:      "Service operations that completed without an infrastructure error.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtrank",
			Name:      "operation_failures_total",
			Help:      "Service operations that failed or panicked.",
		}, []string{"operation", "service"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "courtrank",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		points: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "courtrank",
			Name:      "points_allocated",
			Help:      "Final points per allocation.",
			Buckets:   []float64{-50, -25, -10, -1, 0, 1, 3, 5, 10, 20, 40, 80},
		}, []string{"format", "age_division"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtrank",
			Name:      "ranking_update_conflicts_total",
			Help:      "Optimistic ranking updates that had to be retried.",
		}, []string{"format"}),
		gated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtrank",
			Name:      "leaderboard_gated_total",
			Help:      "Leaderboard reads answered with insufficient_players.",
		}, []string{"format", "age_division"}),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.successes, m.failures, m.durations, m.points, m.conflicts, m.gated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.durations.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordPointsAllocated(_ context.Context, format, ageDivision string, points int) {
	m.points.WithLabelValues(format, ageDivision).Observe(float64(points))
}

func (m *prometheusMetrics) RecordUpdateConflict(_ context.Context, format string) {
	m.conflicts.WithLabelValues(format).Inc()
}

func (m *prometheusMetrics) RecordLeaderboardGated(_ context.Context, format, ageDivision string) {
	m.gated.WithLabelValues(format, ageDivision).Inc()
}

type noop struct{}

// NewNoop returns metrics that record nothing.
func NewNoop() RankingMetrics { return noop{} }

func (noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (noop) RecordOperationFailure(context.Context, string, string)                 {}
func (noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noop) RecordPointsAllocated(context.Context, string, string, int)             {}
func (noop) RecordUpdateConflict(context.Context, string)                           {}
func (noop) RecordLeaderboardGated(context.Context, string, string)                 {}
