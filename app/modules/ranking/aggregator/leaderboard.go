package rankingaggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
)

// LeaderboardStatus tells a reader whether ranked rows are shown.
type LeaderboardStatus string

const (
	LeaderboardActive              LeaderboardStatus = "active"
	LeaderboardInsufficientPlayers LeaderboardStatus = "insufficient_players"
)

// PositionStatus tells a reader whether a rank was computed.
type PositionStatus string

const (
	PositionRanked           PositionStatus = "ranked"
	PositionNotRanked        PositionStatus = "not_ranked"
	PositionInsufficientData PositionStatus = "insufficient_data"
)

// LeaderboardQuery selects one slice page.
type LeaderboardQuery struct {
	Slice  SliceKey
	Limit  int
	Offset int
}

// LeaderboardRow is one ranked player.
type LeaderboardRow struct {
	PlayerID      string               `json:"player_id"`
	Points        rankingdomain.Points `json:"points"`
	Rank          int                  `json:"rank"`
	MatchesPlayed int                  `json:"matches_played"`
	AchievedAt    time.Time            `json:"achieved_at"`
}

// Leaderboard is a page of a slice, or the gating details when the slice has
// too few players.
type Leaderboard struct {
	Status        LeaderboardStatus `json:"status"`
	Slice         SliceKey          `json:"slice"`
	Rows          []LeaderboardRow  `json:"rows,omitempty"`
	TotalPlayers  int               `json:"total_players"`
	PlayerCount   int               `json:"player_count,omitempty"`
	RequiredCount int               `json:"required_count,omitempty"`
	Guidance      string            `json:"guidance,omitempty"`
}

// PositionQuery selects one player in one slice.
type PositionQuery struct {
	PlayerID string
	Slice    SliceKey
}

// Position is a player's standing. Rank and TotalPlayers are set only when
// Status is ranked.
type Position struct {
	Status                 PositionStatus       `json:"status"`
	PlayerID               string               `json:"player_id"`
	Slice                  SliceKey             `json:"slice"`
	Rank                   int                  `json:"rank,omitempty"`
	TotalPlayers           int                  `json:"total_players,omitempty"`
	Points                 rankingdomain.Points `json:"points"`
	MatchesPlayed          int                  `json:"matches_played"`
	MinimumMatchesRequired int                  `json:"minimum_matches_required,omitempty"`
}

// GetLeaderboard ranks the qualifying entries of q.Slice. Entries are ordered
// by points descending, then by the earliest time the total was reached, then
// by player id. Equal points share a rank.
func (a *Aggregator) GetLeaderboard(ctx context.Context, store Store, q LeaderboardQuery) (Leaderboard, error) {
	qualifying, err := a.qualifyingEntries(ctx, store, q.Slice)
	if err != nil {
		return Leaderboard{}, err
	}

	board := Leaderboard{
		Slice:        q.Slice,
		TotalPlayers: len(qualifying),
	}

	if len(qualifying) < a.cfg.MinLeaderboardPlayers {
		a.metrics.RecordLeaderboardGated(ctx, string(q.Slice.Format), string(q.Slice.AgeDivision))
		board.Status = LeaderboardInsufficientPlayers
		board.PlayerCount = len(qualifying)
		board.RequiredCount = a.cfg.MinLeaderboardPlayers
		board.Guidance = fmt.Sprintf(
			"This leaderboard appears once %d players have at least %d recorded match(es); %d more needed.",
			a.cfg.MinLeaderboardPlayers, a.cfg.MinMatchesForPosition, a.cfg.MinLeaderboardPlayers-len(qualifying),
		)
		return board, nil
	}

	board.Status = LeaderboardActive
	ranks := competitionRanks(qualifying)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = min(limit, maxLeaderboardLimit)
	offset := max(q.Offset, 0)
	if offset >= len(qualifying) {
		return board, nil
	}
	end := min(offset+limit, len(qualifying))

	board.Rows = make([]LeaderboardRow, 0, end-offset)
	for i := offset; i < end; i++ {
		e := qualifying[i]
		board.Rows = append(board.Rows, LeaderboardRow{
			PlayerID:      e.Key.PlayerID,
			Points:        e.Points,
			Rank:          ranks[i],
			MatchesPlayed: e.MatchesPlayed,
			AchievedAt:    e.AchievedAt,
		})
	}
	return board, nil
}

// GetPosition returns 1 + the number of qualifying entries in the slice with
// strictly more points. It reads the slice once so the rank agrees with
// GetLeaderboard over the same data.
func (a *Aggregator) GetPosition(ctx context.Context, store Store, q PositionQuery) (Position, error) {
	entries, err := store.ListSlice(ctx, q.Slice)
	if err != nil {
		return Position{}, fmt.Errorf("failed to list slice: %w", err)
	}

	pos := Position{
		Status:   PositionNotRanked,
		PlayerID: q.PlayerID,
		Slice:    q.Slice,
	}

	var self *Entry
	for i := range entries {
		if entries[i].Key.PlayerID == q.PlayerID {
			self = &entries[i]
			break
		}
	}
	if self == nil {
		return pos, nil
	}

	pos.Points = self.Points
	pos.MatchesPlayed = self.MatchesPlayed
	if self.MatchesPlayed < a.cfg.MinMatchesForPosition {
		pos.Status = PositionInsufficientData
		pos.MinimumMatchesRequired = a.cfg.MinMatchesForPosition
		return pos, nil
	}

	ahead, total := 0, 0
	for _, e := range entries {
		if e.MatchesPlayed < a.cfg.MinMatchesForPosition {
			continue
		}
		total++
		if e.Points > self.Points {
			ahead++
		}
	}

	pos.Status = PositionRanked
	pos.Rank = ahead + 1
	pos.TotalPlayers = total
	return pos, nil
}

func (a *Aggregator) qualifyingEntries(ctx context.Context, store Store, slice SliceKey) ([]Entry, error) {
	entries, err := store.ListSlice(ctx, slice)
	if err != nil {
		return nil, fmt.Errorf("failed to list slice: %w", err)
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.MatchesPlayed >= a.cfg.MinMatchesForPosition {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// sortEntries orders by points desc, achievedAt asc, achievedSeq asc, player id asc.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if !a.AchievedAt.Equal(b.AchievedAt) {
			return a.AchievedAt.Before(b.AchievedAt)
		}
		if a.AchievedSeq != b.AchievedSeq {
			return a.AchievedSeq < b.AchievedSeq
		}
		return a.Key.PlayerID < b.Key.PlayerID
	})
}

// competitionRanks assigns "1,1,3" ranks to sorted entries.
func competitionRanks(sorted []Entry) []int {
	ranks := make([]int, len(sorted))
	for i, e := range sorted {
		if i > 0 && e.Points == sorted[i-1].Points {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = i + 1
	}
	return ranks
}
