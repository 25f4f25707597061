package rankingservice

import (
	"context"
	"fmt"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
)

// GetLeaderboard returns one page of a leaderboard slice. A slice with too
// few qualifying players comes back with the insufficient_players status.
func (s *RankingService) GetLeaderboard(ctx context.Context, q rankingaggregator.LeaderboardQuery) (rankingaggregator.Leaderboard, error) {
	board, err := s.aggregator.GetLeaderboard(ctx, s.repo.RankingStore(nil), q)
	if err != nil {
		return rankingaggregator.Leaderboard{}, fmt.Errorf("GetLeaderboard: %w", err)
	}
	s.logger.DebugContext(ctx, "Leaderboard computed",
		attr.ExtractCorrelationID(ctx),
		attr.String("format", string(q.Slice.Format)),
		attr.String("age_division", string(q.Slice.AgeDivision)),
		attr.String("tier_id", q.Slice.TierID),
		attr.String("status", string(board.Status)),
		attr.Int("total_players", board.TotalPlayers),
	)
	return board, nil
}

// GetPosition returns a player's rank in one slice.
func (s *RankingService) GetPosition(ctx context.Context, q rankingaggregator.PositionQuery) (rankingaggregator.Position, error) {
	pos, err := s.aggregator.GetPosition(ctx, s.repo.RankingStore(nil), q)
	if err != nil {
		return rankingaggregator.Position{}, fmt.Errorf("GetPosition: %w", err)
	}
	return pos, nil
}

func (s *RankingService) GetHistory(ctx context.Context, q rankingaggregator.HistoryQuery, limit int) ([]rankingaggregator.HistoryEntry, error) {
	var out []rankingaggregator.HistoryEntry
	for entry, err := range s.aggregator.History(ctx, s.repo.RankingStore(nil), q) {
		if err != nil {
			return nil, fmt.Errorf("GetHistory: %w", err)
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetTierCatalog returns the configured tiers, or nothing when the service
// runs without a catalog.
func (s *RankingService) GetTierCatalog(context.Context) []rankingdomain.RatingTier {
	catalog := s.resolver.Catalog()
	if catalog == nil {
		return nil
	}
	return catalog.Tiers()
}
