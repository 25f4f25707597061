package rankingservice

import (
	"context"
	"sync"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Ranking Repo
// ------------------------

// FakeRankingRepository records every call and lets a test override any
// method. Methods without an override fall through to an in-memory
// repository, so scenario tests can run real flows. Stage returns a fake
// sharing the same overrides and trace whose fallthrough target is a staged
// view of that repository.
type FakeRankingRepository struct {
	traceMu *sync.Mutex
	trace   *[]string
	mem     *rankingdb.MemoryRepository
	// backing receives calls without an override.
	backing rankingdb.Repository
	staged  rankingdb.StagedRepository

	GetPlayerFunc                func(ctx context.Context, db bun.IDB, playerID string) (*rankingdb.Player, error)
	GetPlayersFunc               func(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]*rankingdb.Player, error)
	UpsertPlayerFunc             func(ctx context.Context, db bun.IDB, player *rankingdb.Player) error
	ListPlayersWithMinRatingFunc func(ctx context.Context, db bun.IDB, minRating float64) ([]rankingdb.Player, error)
	GetProcessedMatchFunc        func(ctx context.Context, db bun.IDB, matchID string) (*rankingdb.ProcessedMatch, error)
	InsertProcessedMatchFunc     func(ctx context.Context, db bun.IDB, match *rankingdb.ProcessedMatch) error
	RankingStoreFunc             func(db bun.IDB) rankingaggregator.Store
	// WrapRankingStoreFunc decorates the store the fake would otherwise return.
	WrapRankingStoreFunc func(store rankingaggregator.Store) rankingaggregator.Store
	CommitFunc           func(ctx context.Context) error
}

// NewFakeRankingRepository initializes a FakeRankingRepository with an empty trace.
func NewFakeRankingRepository() *FakeRankingRepository {
	mem := rankingdb.NewMemoryRepository()
	return &FakeRankingRepository{
		traceMu: &sync.Mutex{},
		trace:   &[]string{},
		mem:     mem,
		backing: mem,
	}
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeRankingRepository) Trace() []string {
	f.traceMu.Lock()
	defer f.traceMu.Unlock()
	out := make([]string, len(*f.trace))
	copy(out, *f.trace)
	return out
}

func (f *FakeRankingRepository) record(step string) {
	f.traceMu.Lock()
	defer f.traceMu.Unlock()
	*f.trace = append(*f.trace, step)
}

func (f *FakeRankingRepository) Stage() rankingdb.StagedRepository {
	f.record("Stage")
	staged := f.mem.Stage()
	view := *f
	view.backing = staged
	view.staged = staged
	return &view
}

func (f *FakeRankingRepository) Commit(ctx context.Context) error {
	f.record("Commit")
	if f.CommitFunc != nil {
		return f.CommitFunc(ctx)
	}
	if f.staged == nil {
		return nil
	}
	return f.staged.Commit(ctx)
}

func (f *FakeRankingRepository) GetPlayer(ctx context.Context, db bun.IDB, playerID string) (*rankingdb.Player, error) {
	f.record("GetPlayer")
	if f.GetPlayerFunc != nil {
		return f.GetPlayerFunc(ctx, db, playerID)
	}
	return f.backing.GetPlayer(ctx, db, playerID)
}

func (f *FakeRankingRepository) GetPlayers(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]*rankingdb.Player, error) {
	f.record("GetPlayers")
	if f.GetPlayersFunc != nil {
		return f.GetPlayersFunc(ctx, db, playerIDs)
	}
	return f.backing.GetPlayers(ctx, db, playerIDs)
}

func (f *FakeRankingRepository) UpsertPlayer(ctx context.Context, db bun.IDB, player *rankingdb.Player) error {
	f.record("UpsertPlayer")
	if f.UpsertPlayerFunc != nil {
		return f.UpsertPlayerFunc(ctx, db, player)
	}
	return f.backing.UpsertPlayer(ctx, db, player)
}

func (f *FakeRankingRepository) ListPlayersWithMinRating(ctx context.Context, db bun.IDB, minRating float64) ([]rankingdb.Player, error) {
	f.record("ListPlayersWithMinRating")
	if f.ListPlayersWithMinRatingFunc != nil {
		return f.ListPlayersWithMinRatingFunc(ctx, db, minRating)
	}
	return f.backing.ListPlayersWithMinRating(ctx, db, minRating)
}

func (f *FakeRankingRepository) GetProcessedMatch(ctx context.Context, db bun.IDB, matchID string) (*rankingdb.ProcessedMatch, error) {
	f.record("GetProcessedMatch")
	if f.GetProcessedMatchFunc != nil {
		return f.GetProcessedMatchFunc(ctx, db, matchID)
	}
	return f.backing.GetProcessedMatch(ctx, db, matchID)
}

func (f *FakeRankingRepository) InsertProcessedMatch(ctx context.Context, db bun.IDB, match *rankingdb.ProcessedMatch) error {
	f.record("InsertProcessedMatch")
	if f.InsertProcessedMatchFunc != nil {
		return f.InsertProcessedMatchFunc(ctx, db, match)
	}
	return f.backing.InsertProcessedMatch(ctx, db, match)
}

func (f *FakeRankingRepository) RankingStore(db bun.IDB) rankingaggregator.Store {
	f.record("RankingStore")
	if f.RankingStoreFunc != nil {
		return f.RankingStoreFunc(db)
	}
	store := f.backing.RankingStore(db)
	if f.WrapRankingStoreFunc != nil {
		return f.WrapRankingStoreFunc(store)
	}
	return store
}

// Ensure the fake actually satisfies the interfaces
var (
	_ rankingdb.Repository       = (*FakeRankingRepository)(nil)
	_ rankingdb.StagedRepository = (*FakeRankingRepository)(nil)
	_ rankingdb.Stager           = (*FakeRankingRepository)(nil)
)
