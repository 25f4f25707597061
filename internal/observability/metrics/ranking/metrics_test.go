package rankingmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheus(reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordOperationAttempt(ctx, "SubmitMatch", "RankingService")
	m.RecordOperationAttempt(ctx, "SubmitMatch", "RankingService")
	m.RecordOperationSuccess(ctx, "SubmitMatch", "RankingService")
	m.RecordOperationDuration(ctx, "SubmitMatch", "RankingService", 10*time.Millisecond)
	m.RecordPointsAllocated(ctx, "singles", "19plus", 8)
	m.RecordUpdateConflict(ctx, "singles")
	m.RecordLeaderboardGated(ctx, "doubles", "35plus")

	pm := m.(*prometheusMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.attempts.WithLabelValues("SubmitMatch", "RankingService")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.successes.WithLabelValues("SubmitMatch", "RankingService")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.conflicts.WithLabelValues("singles")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.gated.WithLabelValues("doubles", "35plus")))

	_, err = NewPrometheus(reg)
	assert.Error(t, err, "registering twice on one registry should fail")
}

func TestNoop(t *testing.T) {
	m := NewNoop()
	assert.NotPanics(t, func() {
		m.RecordOperationAttempt(context.Background(), "x", "y")
		m.RecordPointsAllocated(context.Background(), "singles", "19plus", 3)
	})
}
