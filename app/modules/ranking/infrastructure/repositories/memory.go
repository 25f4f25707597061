package rankingdb

import (
	"context"
	"sort"
	"sync"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	"github.com/uptrace/bun"
)

// MemoryRepository keeps profiles, processed matches and totals in process
// memory. The db arguments are ignored. It is used when no database is
// configured and in tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	players   map[string]Player
	processed map[string]ProcessedMatch
	store     *rankingaggregator.MemoryStore
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Stager     = (*MemoryRepository)(nil)
)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		players:   make(map[string]Player),
		processed: make(map[string]ProcessedMatch),
		store:     rankingaggregator.NewMemoryStore(),
	}
}

func (r *MemoryRepository) GetPlayer(_ context.Context, _ bun.IDB, playerID string) (*Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetPlayers(_ context.Context, _ bun.IDB, playerIDs []string) (map[string]*Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Player, len(playerIDs))
	for _, id := range playerIDs {
		if p, ok := r.players[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpsertPlayer(_ context.Context, _ bun.IDB, player *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	player.UpdatedAt = time.Now().UTC()
	r.players[player.PlayerID] = *player
	return nil
}

func (r *MemoryRepository) ListPlayersWithMinRating(_ context.Context, _ bun.IDB, minRating float64) ([]Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Player
	for _, p := range r.players {
		if p.Rating >= minRating {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (r *MemoryRepository) GetProcessedMatch(_ context.Context, _ bun.IDB, matchID string) (*ProcessedMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.processed[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (r *MemoryRepository) InsertProcessedMatch(_ context.Context, _ bun.IDB, match *ProcessedMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processed[match.MatchID]; ok {
		return ErrDuplicate
	}
	if match.ProcessedAt.IsZero() {
		match.ProcessedAt = time.Now().UTC()
	}
	r.processed[match.MatchID] = *match
	return nil
}

func (r *MemoryRepository) RankingStore(bun.IDB) rankingaggregator.Store {
	return r.store
}

// Stage returns a view that buffers profile, processed-match and ranking
// writes until Commit.
func (r *MemoryRepository) Stage() StagedRepository {
	return &memoryStage{
		repo:      r,
		players:   make(map[string]Player),
		processed: make(map[string]ProcessedMatch),
		batch:     r.store.Batch(),
	}
}

type memoryStage struct {
	repo *MemoryRepository

	mu        sync.Mutex
	players   map[string]Player
	processed map[string]ProcessedMatch
	batch     *rankingaggregator.MemoryBatch
}

func (s *memoryStage) GetPlayer(ctx context.Context, db bun.IDB, playerID string) (*Player, error) {
	s.mu.Lock()
	p, ok := s.players[playerID]
	s.mu.Unlock()
	if ok {
		return &p, nil
	}
	return s.repo.GetPlayer(ctx, db, playerID)
}

func (s *memoryStage) GetPlayers(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]*Player, error) {
	out, err := s.repo.GetPlayers(ctx, db, playerIDs)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range playerIDs {
		if p, ok := s.players[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (s *memoryStage) UpsertPlayer(_ context.Context, _ bun.IDB, player *Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player.UpdatedAt = time.Now().UTC()
	s.players[player.PlayerID] = *player
	return nil
}

func (s *memoryStage) ListPlayersWithMinRating(ctx context.Context, db bun.IDB, minRating float64) ([]Player, error) {
	return s.repo.ListPlayersWithMinRating(ctx, db, minRating)
}

func (s *memoryStage) GetProcessedMatch(ctx context.Context, db bun.IDB, matchID string) (*ProcessedMatch, error) {
	s.mu.Lock()
	m, ok := s.processed[matchID]
	s.mu.Unlock()
	if ok {
		return &m, nil
	}
	return s.repo.GetProcessedMatch(ctx, db, matchID)
}

func (s *memoryStage) InsertProcessedMatch(ctx context.Context, db bun.IDB, match *ProcessedMatch) error {
	if _, err := s.repo.GetProcessedMatch(ctx, db, match.MatchID); err == nil {
		return ErrDuplicate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[match.MatchID]; ok {
		return ErrDuplicate
	}
	if match.ProcessedAt.IsZero() {
		match.ProcessedAt = time.Now().UTC()
	}
	s.processed[match.MatchID] = *match
	return nil
}

func (s *memoryStage) RankingStore(bun.IDB) rankingaggregator.Store {
	return s.batch
}

func (s *memoryStage) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range s.processed {
		if _, ok := r.processed[id]; ok {
			return ErrDuplicate
		}
	}
	if err := s.batch.Commit(); err != nil {
		return err
	}
	for id, p := range s.players {
		r.players[id] = p
	}
	for id, m := range s.processed {
		r.processed[id] = m
	}

	s.players = make(map[string]Player)
	s.processed = make(map[string]ProcessedMatch)
	return nil
}
