// Package rankingaggregator applies point allocations to per-player totals and
// answers leaderboard, position and history queries.
package rankingaggregator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	"github.com/Black-And-White-Club/courtrank/internal/keylock"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
	rankingmetrics "github.com/Black-And-White-Club/courtrank/internal/observability/metrics/ranking"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 500
	historyPageSize         = 100
)

// Config holds the read-path gates and the write retry budget.
type Config struct {
	// MinLeaderboardPlayers is the number of qualifying players a slice needs
	// before ranked rows are shown.
	MinLeaderboardPlayers int
	// MinMatchesForPosition is the number of matches an entry needs to be ranked.
	MinMatchesForPosition int
	// MaxUpdateRetries bounds compare-and-swap retries per key.
	MaxUpdateRetries int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinLeaderboardPlayers: 3,
		MinMatchesForPosition: 1,
		MaxUpdateRetries:      5,
	}
}

// Aggregator serializes writes per entry key and computes leaderboards on
// demand from current totals. It holds no totals itself; every call names
// the Store to use so a caller can bind one to a transaction.
type Aggregator struct {
	cfg     Config
	locks   keylock.Locks[EntryKey]
	seq     atomic.Int64
	logger  *slog.Logger
	metrics rankingmetrics.RankingMetrics
	now     func() time.Time
}

// New returns an Aggregator. Zero config values take the defaults.
func New(cfg Config, logger *slog.Logger, metrics rankingmetrics.RankingMetrics) *Aggregator {
	def := DefaultConfig()
	if cfg.MinLeaderboardPlayers <= 0 {
		cfg.MinLeaderboardPlayers = def.MinLeaderboardPlayers
	}
	if cfg.MinMatchesForPosition <= 0 {
		cfg.MinMatchesForPosition = def.MinMatchesForPosition
	}
	if cfg.MaxUpdateRetries <= 0 {
		cfg.MaxUpdateRetries = def.MaxUpdateRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = rankingmetrics.NewNoop()
	}

	a := &Aggregator{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
	a.seq.Store(time.Now().UnixNano())
	return a
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config { return a.cfg }

// LockEntries blocks until every key is held and returns the matching unlock.
// Keys are taken in sorted order so overlapping callers cannot deadlock.
// Callers that read entries before allocating hold the participants' overall
// keys from that read until their writes are durable.
func (a *Aggregator) LockEntries(keys ...EntryKey) (unlock func()) {
	sorted := make([]EntryKey, 0, len(keys))
	seen := make(map[EntryKey]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	unlocks := make([]func(), 0, len(sorted))
	for _, k := range sorted {
		unlocks = append(unlocks, a.locks.Lock(k))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// OverallKeys returns the overall entry key of every allocation.
func OverallKeys(allocs []rankingdomain.PointsAllocation) []EntryKey {
	keys := make([]EntryKey, len(allocs))
	for i, alloc := range allocs {
		keys[i] = overallKey(alloc)
	}
	return keys
}

func overallKey(alloc rankingdomain.PointsAllocation) EntryKey {
	return EntryKey{
		PlayerID:    alloc.PlayerID,
		Format:      alloc.Format,
		AgeDivision: alloc.AgeDivision,
	}
}

// ApplyMatch applies every allocation of one match while holding all of the
// match's overall keys, and returns the resulting overall entries in the
// same order as allocs.
func (a *Aggregator) ApplyMatch(ctx context.Context, store Store, allocs []rankingdomain.PointsAllocation, playedAt time.Time) ([]Entry, error) {
	unlock := a.LockEntries(OverallKeys(allocs)...)
	defer unlock()
	return a.ApplyLockedMatch(ctx, store, allocs, playedAt)
}

// ApplyLockedMatch is ApplyMatch for a caller that already holds every
// overall key of allocs through LockEntries.
func (a *Aggregator) ApplyLockedMatch(ctx context.Context, store Store, allocs []rankingdomain.PointsAllocation, playedAt time.Time) ([]Entry, error) {
	order := make([]int, len(allocs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return allocs[order[i]].PlayerID < allocs[order[j]].PlayerID
	})

	out := make([]Entry, len(allocs))
	for _, i := range order {
		entry, err := a.applyAllocation(ctx, store, allocs[i], playedAt, true)
		if err != nil {
			return nil, err
		}
		out[i] = entry
	}
	return out, nil
}

// ApplyAllocation adds alloc.FinalPoints to the player's overall entry and,
// when the allocation names a tier, to the tier-scoped entry. Totals never go
// below zero. A history entry is recorded for the overall change. The overall
// entry is returned.
func (a *Aggregator) ApplyAllocation(ctx context.Context, store Store, alloc rankingdomain.PointsAllocation, playedAt time.Time) (Entry, error) {
	return a.applyAllocation(ctx, store, alloc, playedAt, false)
}

func (a *Aggregator) applyAllocation(ctx context.Context, store Store, alloc rankingdomain.PointsAllocation, playedAt time.Time, overallHeld bool) (Entry, error) {
	if playedAt.IsZero() {
		playedAt = a.now()
	}

	key := overallKey(alloc)
	overall, before, err := a.applyToKey(ctx, store, key, alloc, playedAt, overallHeld)
	if err != nil {
		return Entry{}, err
	}

	if alloc.TierID != "" {
		tierKey := key
		tierKey.TierID = alloc.TierID
		if _, _, err := a.applyToKey(ctx, store, tierKey, alloc, playedAt, false); err != nil {
			return Entry{}, err
		}
	}

	if err := a.Record(ctx, store, HistoryEntry{
		PlayerID:       alloc.PlayerID,
		Format:         alloc.Format,
		AgeDivision:    alloc.AgeDivision,
		MatchID:        alloc.MatchID,
		Delta:          overall.Points - before,
		ResultingTotal: overall.Points,
		Reason:         strings.Join(alloc.ReasonTrail, "; "),
		PlayedAt:       playedAt,
	}); err != nil {
		return Entry{}, err
	}

	return overall, nil
}

// applyToKey performs the read-modify-CAS loop for one key and returns the
// stored entry and the total before the change. The key is locked for the
// loop unless the caller already holds it.
func (a *Aggregator) applyToKey(ctx context.Context, store Store, key EntryKey, alloc rankingdomain.PointsAllocation, playedAt time.Time, held bool) (Entry, rankingdomain.Points, error) {
	if !held {
		unlock := a.locks.Lock(key)
		defer unlock()
	}

	for attempt := 0; attempt <= a.cfg.MaxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Entry{}, 0, err
		}

		current, err := store.GetEntry(ctx, key)
		switch {
		case errors.Is(err, ErrEntryNotFound):
			current = &Entry{Key: key}
		case err != nil:
			return Entry{}, 0, fmt.Errorf("failed to load ranking entry %s: %w", key, err)
		}

		next := *current
		next.Key = key
		next.Points = max(current.Points+alloc.FinalPoints, 0)
		next.MatchesPlayed++
		if alloc.Won {
			next.Wins++
			next.WinStreak++
		} else {
			next.Losses++
			next.WinStreak = 0
		}
		if current.Version == 0 || next.Points != current.Points {
			next.AchievedAt = playedAt
			next.AchievedSeq = a.seq.Add(1)
		}
		next.Version = current.Version + 1
		next.UpdatedAt = a.now()

		err = store.CompareAndSwapEntry(ctx, &next, current.Version)
		if err == nil {
			return next, current.Points, nil
		}
		if !errors.Is(err, ErrConcurrentUpdateConflict) {
			return Entry{}, 0, fmt.Errorf("failed to store ranking entry %s: %w", key, err)
		}

		a.metrics.RecordUpdateConflict(ctx, string(key.Format))
		a.logger.DebugContext(ctx, "Ranking entry changed underneath update, retrying",
			attr.ExtractCorrelationID(ctx),
			attr.String("key", key.String()),
			attr.Int("attempt", attempt+1),
		)
	}

	a.logger.WarnContext(ctx, "Ranking update retries exhausted",
		attr.ExtractCorrelationID(ctx),
		attr.String("key", key.String()),
		attr.Int("max_retries", a.cfg.MaxUpdateRetries),
	)
	return Entry{}, 0, fmt.Errorf("%w: %s", ErrRetriesExhausted, key)
}

// Record appends a history entry stamped with the current time.
func (a *Aggregator) Record(ctx context.Context, store Store, entry HistoryEntry) error {
	entry.RecordedAt = a.now()
	if entry.PlayedAt.IsZero() {
		entry.PlayedAt = entry.RecordedAt
	}
	if err := store.AppendHistory(ctx, &entry); err != nil {
		return fmt.Errorf("failed to append ranking history for %s: %w", entry.PlayerID, err)
	}
	return nil
}

// History yields q's entries in recording order, fetching one page at a
// time. Each range over the sequence starts again from the first entry. A
// store error is yielded once and ends the sequence.
func (a *Aggregator) History(ctx context.Context, store Store, q HistoryQuery) iter.Seq2[HistoryEntry, error] {
	return func(yield func(HistoryEntry, error) bool) {
		var after int64
		for {
			page, err := store.ListHistory(ctx, q, after, historyPageSize)
			if err != nil {
				yield(HistoryEntry{}, err)
				return
			}
			for _, h := range page {
				if !yield(h, nil) {
					return
				}
				after = h.ID
			}
			if len(page) < historyPageSize {
				return
			}
		}
	}
}
