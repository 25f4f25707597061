package rankingqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/eventbus"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/riverqueue/river"
)

// ShortfallFinder is the slice of the ranking service the sweep needs.
type ShortfallFinder interface {
	FindActivityShortfalls(ctx context.Context, now time.Time) ([]rankingevents.ActivityShortfallPayloadV1, error)
}

// ActivitySweepWorker publishes one shortfall event per player found.
type ActivitySweepWorker struct {
	river.WorkerDefaults[ActivitySweepJob]

	logger    *slog.Logger
	finder    ShortfallFinder
	publisher message.Publisher
	now       func() time.Time
}

// NewActivitySweepWorker returns a worker that reads shortfalls from finder.
func NewActivitySweepWorker(logger *slog.Logger, finder ShortfallFinder, publisher message.Publisher) *ActivitySweepWorker {
	return &ActivitySweepWorker{
		logger:    logger,
		finder:    finder,
		publisher: publisher,
		now:       time.Now,
	}
}

// Timeout bounds one sweep.
func (w *ActivitySweepWorker) Timeout(*river.Job[ActivitySweepJob]) time.Duration {
	return 2 * time.Minute
}

// Work runs the sweep. A publish failure fails the job so river retries it;
// consumers see duplicates for the players already published.
func (w *ActivitySweepWorker) Work(ctx context.Context, job *river.Job[ActivitySweepJob]) error {
	asOf := job.Args.AsOf
	if asOf.IsZero() {
		asOf = w.now()
	}

	correlationID := watermill.NewUUID()
	ctx = attr.WithCorrelationID(ctx, correlationID)
	logger := w.logger.With(
		attr.ExtractCorrelationID(ctx),
		attr.String("job_kind", job.Args.Kind()),
		attr.Time("as_of", asOf),
	)
	if job.JobRow != nil {
		logger = logger.With(attr.Int64("job_id", job.ID), attr.Int("attempt", job.Attempt))
	}

	logger.InfoContext(ctx, "Running activity sweep", attr.String("requested", job.Args.Requested))

	shortfalls, err := w.finder.FindActivityShortfalls(ctx, asOf)
	if err != nil {
		logger.ErrorContext(ctx, "Activity sweep failed", attr.Error(err))
		return fmt.Errorf("activity sweep: %w", err)
	}

	for _, s := range shortfalls {
		msg, err := newShortfallMessage(s, correlationID)
		if err != nil {
			return err
		}
		if err := w.publisher.Publish(rankingevents.ActivityShortfallV1, msg); err != nil {
			logger.ErrorContext(ctx, "Failed to publish activity shortfall",
				attr.PlayerID(s.PlayerID),
				attr.Error(err),
			)
			return fmt.Errorf("failed to publish shortfall for %s: %w", s.PlayerID, err)
		}
	}

	logger.InfoContext(ctx, "Activity sweep published shortfalls", attr.Int("count", len(shortfalls)))
	return nil
}

func newShortfallMessage(s rankingevents.ActivityShortfallPayloadV1, correlationID string) (*message.Message, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shortfall for %s: %w", s.PlayerID, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(eventbus.TopicMetadataKey, rankingevents.ActivityShortfallV1)
	middleware.SetCorrelationID(correlationID, msg)
	return msg, nil
}
