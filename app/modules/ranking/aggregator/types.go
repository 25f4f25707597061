package rankingaggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
)

var (
	// ErrEntryNotFound is returned by stores when a key has no entry yet.
	ErrEntryNotFound = errors.New("ranking entry not found")
	// ErrConcurrentUpdateConflict is returned by stores when the stored
	// version no longer matches. The aggregator retries it.
	ErrConcurrentUpdateConflict = errors.New("concurrent ranking update conflict")
	// ErrRetriesExhausted is returned when conflicts persist past the retry budget.
	ErrRetriesExhausted = errors.New("ranking update retries exhausted")
)

// SliceKey identifies one leaderboard. An empty TierID is the overall slice.
type SliceKey struct {
	Format      rankingdomain.PlayFormat  `json:"format"`
	AgeDivision rankingdomain.AgeDivision `json:"age_division"`
	TierID      string                    `json:"tier_id,omitempty"`
}

// EntryKey identifies one player's total within a slice.
type EntryKey struct {
	PlayerID    string
	Format      rankingdomain.PlayFormat
	AgeDivision rankingdomain.AgeDivision
	TierID      string
}

// Slice returns the leaderboard the key belongs to.
func (k EntryKey) Slice() SliceKey {
	return SliceKey{Format: k.Format, AgeDivision: k.AgeDivision, TierID: k.TierID}
}

// Overall returns the key without its tier scope.
func (k EntryKey) Overall() EntryKey {
	k.TierID = ""
	return k
}

func (k EntryKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.PlayerID, k.Format, k.AgeDivision, k.TierID)
}

// Entry is a player's running total in one slice. AchievedAt is when the
// match that produced the current total was played. Version is 0 for an entry
// that has never been stored.
type Entry struct {
	Key           EntryKey
	Points        rankingdomain.Points
	MatchesPlayed int
	Wins          int
	Losses        int
	WinStreak     int
	AchievedAt    time.Time
	AchievedSeq   int64
	Version       int64
	UpdatedAt     time.Time
}

// HistoryEntry is one immutable point change. Entries are ordered by ID, which
// follows RecordedAt.
type HistoryEntry struct {
	ID             int64                     `json:"id"`
	PlayerID       string                    `json:"player_id"`
	Format         rankingdomain.PlayFormat  `json:"format"`
	AgeDivision    rankingdomain.AgeDivision `json:"age_division"`
	MatchID        string                    `json:"match_id"`
	Delta          rankingdomain.Points      `json:"delta"`
	ResultingTotal rankingdomain.Points      `json:"resulting_total"`
	Reason         string                    `json:"reason,omitempty"`
	PlayedAt       time.Time                 `json:"played_at"`
	RecordedAt     time.Time                 `json:"timestamp"`
}

// HistoryQuery selects a player's history. Empty Format or AgeDivision match
// any value.
type HistoryQuery struct {
	PlayerID    string
	Format      rankingdomain.PlayFormat
	AgeDivision rankingdomain.AgeDivision
	Since       time.Time
}

// Matches reports whether h is selected by q.
func (q HistoryQuery) Matches(h HistoryEntry) bool {
	if h.PlayerID != q.PlayerID {
		return false
	}
	if q.Format != "" && h.Format != q.Format {
		return false
	}
	if q.AgeDivision != "" && h.AgeDivision != q.AgeDivision {
		return false
	}
	return q.Since.IsZero() || !h.RecordedAt.Before(q.Since)
}

// Store persists entries and history. Implementations must make
// CompareAndSwapEntry atomic: it writes next only when the stored version
// equals expectedVersion (0 meaning absent) and otherwise returns
// ErrConcurrentUpdateConflict.
type Store interface {
	GetEntry(ctx context.Context, key EntryKey) (*Entry, error)
	CompareAndSwapEntry(ctx context.Context, next *Entry, expectedVersion int64) error
	ListSlice(ctx context.Context, slice SliceKey) ([]Entry, error)
	AppendHistory(ctx context.Context, entry *HistoryEntry) error
	// ListHistory returns up to limit entries with ID greater than afterID,
	// ordered by ID.
	ListHistory(ctx context.Context, q HistoryQuery, afterID int64, limit int) ([]HistoryEntry, error)
	// CountMatchesBetween counts history entries per player for matches
	// played in [from, to).
	CountMatchesBetween(ctx context.Context, from, to time.Time) (map[string]int, error)
}
