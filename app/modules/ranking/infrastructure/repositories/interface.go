package rankingdb

import (
	"context"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	"github.com/uptrace/bun"
)

// Repository defines the contract for ranking persistence. A nil db argument
// uses the repository's own connection; pass a transaction to scope a call.
//
// Error semantics:
//   - ErrNotFound: record does not exist
//   - ErrDuplicate: insert collided with an existing key
//   - Other errors: infrastructure failures
type Repository interface {
	// GetPlayer returns one profile or ErrNotFound.
	GetPlayer(ctx context.Context, db bun.IDB, playerID string) (*Player, error)

	// GetPlayers returns the profiles that exist among playerIDs, keyed by id.
	GetPlayers(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]*Player, error)

	// UpsertPlayer creates or replaces a profile.
	UpsertPlayer(ctx context.Context, db bun.IDB, player *Player) error

	// ListPlayersWithMinRating returns profiles rated at or above minRating,
	// ordered by player id.
	ListPlayersWithMinRating(ctx context.Context, db bun.IDB, minRating float64) ([]Player, error)

	// GetProcessedMatch returns the processed marker for matchID or ErrNotFound.
	GetProcessedMatch(ctx context.Context, db bun.IDB, matchID string) (*ProcessedMatch, error)

	// InsertProcessedMatch stores a marker. Returns ErrDuplicate when the
	// match id was already processed.
	InsertProcessedMatch(ctx context.Context, db bun.IDB, match *ProcessedMatch) error

	// RankingStore returns the aggregator store bound to db.
	RankingStore(db bun.IDB) rankingaggregator.Store
}

// Stager is implemented by repositories that have no database transaction to
// scope a write path. Stage returns a view whose writes stay invisible until
// Commit; discarding the view rolls them back.
type Stager interface {
	Stage() StagedRepository
}

// StagedRepository is a Repository view created by Stager.Stage.
type StagedRepository interface {
	Repository
	// Commit publishes every staged write at once, or none of them. It
	// returns ErrDuplicate when a staged processed match was recorded
	// meanwhile.
	Commit(ctx context.Context) error
}
