package rankingservice

import (
	"context"
	"fmt"
	"time"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
)

// activityWindow is the period a monthly minimum is measured over.
const activityWindow = 30 * 24 * time.Hour

// lowestCategoryWithMinimum returns the first category whose rules require a
// monthly match minimum.
func lowestCategoryWithMinimum() (rankingdomain.TierCategory, bool) {
	for c := rankingdomain.TierBeginner; c <= rankingdomain.TierElite; c++ {
		if c.Rules().RequiresMinimumMatches {
			return c, true
		}
	}
	return 0, false
}

func (s *RankingService) FindActivityShortfalls(ctx context.Context, now time.Time) ([]rankingevents.ActivityShortfallPayloadV1, error) {
	floor, ok := lowestCategoryWithMinimum()
	if !ok {
		return nil, nil
	}

	players, err := s.repo.ListPlayersWithMinRating(ctx, nil, floor.MinRating())
	if err != nil {
		return nil, fmt.Errorf("FindActivityShortfalls: %w", err)
	}
	if len(players) == 0 {
		return nil, nil
	}

	windowStart := now.Add(-activityWindow)
	counts, err := s.repo.RankingStore(nil).CountMatchesBetween(ctx, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("FindActivityShortfalls: %w", err)
	}

	var out []rankingevents.ActivityShortfallPayloadV1
	for _, p := range players {
		category := rankingdomain.CategoryForRating(p.Rating)
		rules := category.Rules()
		if !rules.RequiresMinimumMatches || counts[p.PlayerID] >= rules.MinimumMatchesPerMonth {
			continue
		}

		var tierID string
		if catalog := s.resolver.Catalog(); catalog != nil {
			if tier, ok := catalog.TierFor(p.Rating); ok {
				tierID = tier.ID
			}
		}

		out = append(out, rankingevents.ActivityShortfallPayloadV1{
			PlayerID:        p.PlayerID,
			TierID:          tierID,
			TierCategory:    category.String(),
			MatchesPlayed:   counts[p.PlayerID],
			MinimumRequired: rules.MinimumMatchesPerMonth,
			WindowStart:     windowStart,
			WindowEnd:       now,
		})
	}

	s.logger.InfoContext(ctx, "Activity sweep complete",
		attr.ExtractCorrelationID(ctx),
		attr.Int("players_checked", len(players)),
		attr.Int("shortfalls", len(out)),
	)
	return out, nil
}
