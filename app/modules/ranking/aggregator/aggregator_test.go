package rankingaggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingmetrics "github.com/Black-And-White-Club/courtrank/internal/observability/metrics/ranking"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPlayedAt = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func newTestAggregator(cfg Config) *Aggregator {
	return New(cfg, slog.Default(), rankingmetrics.NewNoop())
}

func alloc(player string, points rankingdomain.Points, won bool) rankingdomain.PointsAllocation {
	return rankingdomain.PointsAllocation{
		PlayerID:    player,
		MatchID:     "m-" + player,
		Format:      rankingdomain.FormatSingles,
		AgeDivision: rankingdomain.Division19Plus,
		Won:         won,
		FinalPoints: points,
		ReasonTrail: []string{"test"},
	}
}

var singles19 = SliceKey{Format: rankingdomain.FormatSingles, AgeDivision: rankingdomain.Division19Plus}

func TestApplyAllocation_CreatesAndUpdatesEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{})

	a := alloc("alice", 8, true)
	a.TierID = "intermediate"

	entry, err := agg.ApplyAllocation(ctx, store, a, testPlayedAt)
	require.NoError(t, err)
	assert.Equal(t, rankingdomain.Points(8), entry.Points)
	assert.Equal(t, 1, entry.MatchesPlayed)
	assert.Equal(t, 1, entry.WinStreak)
	assert.Equal(t, int64(1), entry.Version)
	assert.Equal(t, testPlayedAt, entry.AchievedAt)

	tierEntry, err := store.GetEntry(ctx, EntryKey{
		PlayerID: "alice", Format: rankingdomain.FormatSingles,
		AgeDivision: rankingdomain.Division19Plus, TierID: "intermediate",
	})
	require.NoError(t, err)
	assert.Equal(t, rankingdomain.Points(8), tierEntry.Points)

	loss := alloc("alice", 1, false)
	entry, err = agg.ApplyAllocation(ctx, store, loss, testPlayedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, rankingdomain.Points(9), entry.Points)
	assert.Equal(t, 0, entry.WinStreak)
	assert.Equal(t, 1, entry.Wins)
	assert.Equal(t, 1, entry.Losses)
	assert.Equal(t, int64(2), entry.Version)

	var deltas, totals []rankingdomain.Points
	for h, err := range agg.History(ctx, store, HistoryQuery{PlayerID: "alice"}) {
		require.NoError(t, err)
		deltas = append(deltas, h.Delta)
		totals = append(totals, h.ResultingTotal)
	}
	assert.Equal(t, []rankingdomain.Points{8, 1}, deltas)
	assert.Equal(t, []rankingdomain.Points{8, 9}, totals)
}

func TestApplyAllocation_TotalNeverBelowZero(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{})

	_, err := agg.ApplyAllocation(ctx, store, alloc("bob", 2, true), testPlayedAt)
	require.NoError(t, err)

	entry, err := agg.ApplyAllocation(ctx, store, alloc("bob", -5, false), testPlayedAt)
	require.NoError(t, err)
	assert.Equal(t, rankingdomain.Points(0), entry.Points)

	var last HistoryEntry
	for h, err := range agg.History(ctx, store, HistoryQuery{PlayerID: "bob"}) {
		require.NoError(t, err)
		last = h
	}
	assert.Equal(t, rankingdomain.Points(-2), last.Delta, "history records the applied change")
}

func TestApplyAllocation_ConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{})

	faker := gofakeit.New(42)
	players := make([]string, 5)
	for i := range players {
		players[i] = fmt.Sprintf("%s-%d", faker.Username(), i)
	}

	const perPlayer = 40
	var wg sync.WaitGroup
	for _, p := range players {
		for i := 0; i < perPlayer; i++ {
			wg.Add(1)
			go func(player string) {
				defer wg.Done()
				_, err := agg.ApplyAllocation(ctx, store, alloc(player, 3, true), testPlayedAt)
				assert.NoError(t, err)
			}(p)
		}
	}
	wg.Wait()

	for _, p := range players {
		e, err := store.GetEntry(ctx, EntryKey{PlayerID: p, Format: rankingdomain.FormatSingles, AgeDivision: rankingdomain.Division19Plus})
		require.NoError(t, err)
		assert.Equal(t, rankingdomain.Points(3*perPlayer), e.Points, p)
		assert.Equal(t, perPlayer, e.MatchesPlayed, p)
		assert.Equal(t, int64(perPlayer), e.Version, p)
	}
	assert.Equal(t, 0, agg.locks.Len())
}

// conflictingStore reports a conflict for the first n writes.
type conflictingStore struct {
	*MemoryStore
	mu        sync.Mutex
	conflicts int
	writes    int
}

func (s *conflictingStore) CompareAndSwapEntry(ctx context.Context, next *Entry, expectedVersion int64) error {
	s.mu.Lock()
	s.writes++
	conflict := s.conflicts > 0
	if conflict {
		s.conflicts--
	}
	s.mu.Unlock()
	if conflict {
		return ErrConcurrentUpdateConflict
	}
	return s.MemoryStore.CompareAndSwapEntry(ctx, next, expectedVersion)
}

func TestApplyAllocation_RetriesConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("conflict is retried internally", func(t *testing.T) {
		store := &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: 2}
		agg := newTestAggregator(Config{MaxUpdateRetries: 3})

		entry, err := agg.ApplyAllocation(ctx, store, alloc("carol", 5, true), testPlayedAt)
		require.NoError(t, err)
		assert.Equal(t, rankingdomain.Points(5), entry.Points)
		assert.Equal(t, 3, store.writes)
	})

	t.Run("persistent conflict exhausts retries", func(t *testing.T) {
		store := &conflictingStore{MemoryStore: NewMemoryStore(), conflicts: 100}
		agg := newTestAggregator(Config{MaxUpdateRetries: 2})

		_, err := agg.ApplyAllocation(ctx, store, alloc("carol", 5, true), testPlayedAt)
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.Equal(t, 3, store.writes)
	})
}

func TestMemoryStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := EntryKey{PlayerID: "p", Format: rankingdomain.FormatDoubles, AgeDivision: rankingdomain.Division35Plus}

	require.NoError(t, store.CompareAndSwapEntry(ctx, &Entry{Key: key, Points: 1, Version: 1}, 0))
	assert.ErrorIs(t, store.CompareAndSwapEntry(ctx, &Entry{Key: key, Points: 2, Version: 1}, 0), ErrConcurrentUpdateConflict)
	assert.ErrorIs(t, store.CompareAndSwapEntry(ctx, &Entry{Key: key, Points: 2, Version: 3}, 2), ErrConcurrentUpdateConflict)
	require.NoError(t, store.CompareAndSwapEntry(ctx, &Entry{Key: key, Points: 2, Version: 2}, 1))

	missing := key
	missing.PlayerID = "q"
	assert.ErrorIs(t, store.CompareAndSwapEntry(ctx, &Entry{Key: missing, Version: 2}, 1), ErrConcurrentUpdateConflict)

	_, err := store.GetEntry(ctx, missing)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func seedSlice(t *testing.T, agg *Aggregator, store Store, totals map[string]rankingdomain.Points, order []string) {
	t.Helper()
	for i, p := range order {
		_, err := agg.ApplyAllocation(context.Background(), store, alloc(p, totals[p], true), testPlayedAt.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
}

func TestGetLeaderboard_OrderingAndRanks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{MinLeaderboardPlayers: 2})

	totals := map[string]rankingdomain.Points{"dan": 10, "erin": 30, "finn": 10, "gail": 5}
	seedSlice(t, agg, store, totals, []string{"finn", "erin", "dan", "gail"})

	board, err := agg.GetLeaderboard(ctx, store, LeaderboardQuery{Slice: singles19})
	require.NoError(t, err)
	assert.Equal(t, LeaderboardActive, board.Status)
	assert.Equal(t, 4, board.TotalPlayers)

	type row struct {
		Player string
		Points rankingdomain.Points
		Rank   int
	}
	var got []row
	for _, r := range board.Rows {
		got = append(got, row{r.PlayerID, r.Points, r.Rank})
	}
	want := []row{
		{"erin", 30, 1},
		{"finn", 10, 2}, // reached 10 before dan
		{"dan", 10, 2},
		{"gail", 5, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("leaderboard mismatch (-want +got):\n%s", diff)
	}

	again, err := agg.GetLeaderboard(ctx, store, LeaderboardQuery{Slice: singles19})
	require.NoError(t, err)
	assert.Equal(t, board, again, "repeated reads without writes are identical")

	for _, r := range board.Rows {
		pos, err := agg.GetPosition(ctx, store, PositionQuery{PlayerID: r.PlayerID, Slice: singles19})
		require.NoError(t, err)
		assert.Equal(t, PositionRanked, pos.Status)
		assert.Equal(t, r.Rank, pos.Rank, r.PlayerID)
		assert.Equal(t, board.TotalPlayers, pos.TotalPlayers)
	}
}

func TestGetLeaderboard_Pagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{MinLeaderboardPlayers: 1})

	totals := map[string]rankingdomain.Points{}
	var order []string
	for i := 0; i < 7; i++ {
		p := fmt.Sprintf("p%d", i)
		totals[p] = rankingdomain.Points(100 - i)
		order = append(order, p)
	}
	seedSlice(t, agg, store, totals, order)

	page, err := agg.GetLeaderboard(ctx, store, LeaderboardQuery{Slice: singles19, Limit: 3, Offset: 3})
	require.NoError(t, err)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, "p3", page.Rows[0].PlayerID)
	assert.Equal(t, 4, page.Rows[0].Rank)

	past, err := agg.GetLeaderboard(ctx, store, LeaderboardQuery{Slice: singles19, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, past.Rows)
	assert.Equal(t, 7, past.TotalPlayers)
}

func TestGetLeaderboard_InsufficientPlayers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{MinLeaderboardPlayers: 3})

	seedSlice(t, agg, store, map[string]rankingdomain.Points{"a": 5, "b": 3}, []string{"a", "b"})

	board, err := agg.GetLeaderboard(ctx, store, LeaderboardQuery{Slice: singles19})
	require.NoError(t, err)
	assert.Equal(t, LeaderboardInsufficientPlayers, board.Status)
	assert.Empty(t, board.Rows)
	assert.Equal(t, 2, board.PlayerCount)
	assert.Equal(t, 3, board.RequiredCount)
	assert.NotEmpty(t, board.Guidance)
}

func TestGetPosition_Statuses(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{MinMatchesForPosition: 2, MinLeaderboardPlayers: 1})

	_, err := agg.ApplyAllocation(ctx, store, alloc("new", 3, true), testPlayedAt)
	require.NoError(t, err)

	pos, err := agg.GetPosition(ctx, store, PositionQuery{PlayerID: "ghost", Slice: singles19})
	require.NoError(t, err)
	assert.Equal(t, PositionNotRanked, pos.Status)

	pos, err = agg.GetPosition(ctx, store, PositionQuery{PlayerID: "new", Slice: singles19})
	require.NoError(t, err)
	assert.Equal(t, PositionInsufficientData, pos.Status)
	assert.Equal(t, 2, pos.MinimumMatchesRequired)
	assert.Equal(t, 1, pos.MatchesPlayed)

	_, err = agg.ApplyAllocation(ctx, store, alloc("new", 3, true), testPlayedAt)
	require.NoError(t, err)
	pos, err = agg.GetPosition(ctx, store, PositionQuery{PlayerID: "new", Slice: singles19})
	require.NoError(t, err)
	assert.Equal(t, PositionRanked, pos.Status)
	assert.Equal(t, 1, pos.Rank)
	assert.Equal(t, 1, pos.TotalPlayers)
	assert.Equal(t, rankingdomain.Points(6), pos.Points)
}

type failingHistoryStore struct {
	*MemoryStore
	failAfter int
	calls     int
}

func (s *failingHistoryStore) ListHistory(ctx context.Context, q HistoryQuery, afterID int64, limit int) ([]HistoryEntry, error) {
	s.calls++
	if s.calls > s.failAfter {
		return nil, errors.New("connection reset")
	}
	return s.MemoryStore.ListHistory(ctx, q, afterID, limit)
}

func TestHistory_LazyRestartableSequence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{})

	const n = historyPageSize + 20
	for i := 0; i < n; i++ {
		a := alloc("hana", 1, true)
		a.MatchID = fmt.Sprintf("m%03d", i)
		_, err := agg.ApplyAllocation(ctx, store, a, testPlayedAt)
		require.NoError(t, err)
	}
	_, err := agg.ApplyAllocation(ctx, store, alloc("other", 1, true), testPlayedAt)
	require.NoError(t, err)

	seq := agg.History(ctx, store, HistoryQuery{PlayerID: "hana"})

	collect := func() []string {
		var ids []string
		for h, err := range seq {
			require.NoError(t, err)
			ids = append(ids, h.MatchID)
		}
		return ids
	}

	first := collect()
	require.Len(t, first, n)
	assert.Equal(t, "m000", first[0])
	assert.Equal(t, fmt.Sprintf("m%03d", n-1), first[n-1])
	assert.Equal(t, first, collect(), "ranging again restarts from the beginning")

	count := 0
	for range seq {
		count++
		if count == 5 {
			break
		}
	}
	assert.Equal(t, 5, count)

	failing := &failingHistoryStore{MemoryStore: store, failAfter: 1}
	var gotErr error
	seen := 0
	for _, err := range agg.History(ctx, failing, HistoryQuery{PlayerID: "hana"}) {
		if err != nil {
			gotErr = err
			continue
		}
		seen++
	}
	assert.Equal(t, historyPageSize, seen)
	assert.EqualError(t, gotErr, "connection reset")
}

func TestApplyMatch_ReturnsEntriesInAllocationOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	agg := newTestAggregator(Config{})

	entries, err := agg.ApplyMatch(ctx, store, []rankingdomain.PointsAllocation{
		alloc("zoe", 8, true),
		alloc("adam", 1, false),
	}, testPlayedAt)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "zoe", entries[0].Key.PlayerID)
	assert.Equal(t, rankingdomain.Points(8), entries[0].Points)
	assert.Equal(t, "adam", entries[1].Key.PlayerID)

	counts, err := store.CountMatchesBetween(ctx, testPlayedAt, testPlayedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"zoe": 1, "adam": 1}, counts)
}

func TestMemoryStore_CountMatchesBetween(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i, at := range []time.Time{
		testPlayedAt.Add(-time.Hour),
		testPlayedAt,
		testPlayedAt.Add(time.Hour),
		testPlayedAt.Add(2 * time.Hour),
	} {
		require.NoError(t, store.AppendHistory(ctx, &HistoryEntry{PlayerID: "kim", MatchID: fmt.Sprintf("m%d", i), PlayedAt: at}))
	}

	counts, err := store.CountMatchesBetween(ctx, testPlayedAt, testPlayedAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"kim": 2}, counts, "from is inclusive, to is exclusive")
}

func TestLockEntries_OverlappingSetsDoNotDeadlock(t *testing.T) {
	agg := newTestAggregator(Config{})
	key := func(id string) EntryKey {
		return EntryKey{PlayerID: id, Format: rankingdomain.FormatSingles, AgeDivision: rankingdomain.Division19Plus}
	}
	a, b, c := key("a"), key("b"), key("c")
	sets := [][]EntryKey{{a, b}, {b, a, a}, {c, b, a}, {b, c}}

	var wg sync.WaitGroup
	held := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := agg.LockEntries(sets[i%len(sets)]...)
			// every set contains b, which guards held
			held++
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("LockEntries deadlocked")
	}
	assert.Equal(t, 200, held)
	assert.Zero(t, agg.locks.Len(), "every key is released")
}

func TestLockEntries_ExcludesOtherHolders(t *testing.T) {
	agg := newTestAggregator(Config{})
	key := EntryKey{PlayerID: "pat", Format: rankingdomain.FormatSingles, AgeDivision: rankingdomain.Division19Plus}

	unlock := agg.LockEntries(key)
	acquired := make(chan struct{})
	go func() {
		release := agg.LockEntries(key, key)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second holder never acquired the key")
	}
}
