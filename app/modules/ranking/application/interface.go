package rankingservice

import (
	"context"
	"io"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
)

// Service defines the ranking operations exposed to handlers, the importer and
// the activity sweep.
type Service interface {
	// SubmitMatch validates a match, allocates points to every participant
	// and applies them. Validation failures are returned as Failure results
	// before anything is written.
	SubmitMatch(ctx context.Context, raw rankingdomain.RawMatchSubmission) (MatchOperationResult, error)

	GetLeaderboard(ctx context.Context, q rankingaggregator.LeaderboardQuery) (rankingaggregator.Leaderboard, error)
	GetPosition(ctx context.Context, q rankingaggregator.PositionQuery) (rankingaggregator.Position, error)

	// GetHistory returns up to limit entries in recording order. A limit of
	// zero returns everything.
	GetHistory(ctx context.Context, q rankingaggregator.HistoryQuery, limit int) ([]rankingaggregator.HistoryEntry, error)

	// HistoryChart renders the player's resulting totals as a PNG.
	HistoryChart(ctx context.Context, q rankingaggregator.HistoryQuery) ([]byte, error)

	GetTierCatalog(ctx context.Context) []rankingdomain.RatingTier

	UpsertPlayerProfile(ctx context.Context, payload rankingevents.PlayerProfileUpdatedPayloadV1) (ProfileOperationResult, error)

	// ImportMatches submits every row of a CSV or XLSX sheet.
	ImportMatches(ctx context.Context, filename string, r io.Reader) (ImportReport, error)

	// FindActivityShortfalls lists players whose tier requires a monthly
	// minimum they have not met in the 30 days before now.
	FindActivityShortfalls(ctx context.Context, now time.Time) ([]rankingevents.ActivityShortfallPayloadV1, error)
}
