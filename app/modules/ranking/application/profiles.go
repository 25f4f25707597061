package rankingservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/courtrank/internal/results"
)

func rejectProfile(reason string) ProfileOperationResult {
	return results.FailureResult[rankingevents.PlayerProfileSavedPayloadV1](rankingevents.RequestFailedPayloadV1{
		Topic:  rankingevents.PlayerProfileUpdatedV1,
		Reason: reason,
	})
}

// UpsertPlayerProfile stores a player's rating and gender. The rating decides
// which tier rules apply to the player's next match.
func (s *RankingService) UpsertPlayerProfile(ctx context.Context, payload rankingevents.PlayerProfileUpdatedPayloadV1) (ProfileOperationResult, error) {
	return withTelemetry(s, ctx, "UpsertPlayerProfile", payload.PlayerID, func(ctx context.Context) (ProfileOperationResult, error) {
		playerID := strings.TrimSpace(payload.PlayerID)
		if playerID == "" {
			return rejectProfile("player_id is required"), nil
		}

		resolution, err := s.resolver.Resolve(payload.Rating)
		if errors.Is(err, rankingdomain.ErrInvalidRating) {
			return rejectProfile(err.Error()), nil
		}
		if err != nil && !errors.Is(err, rankingdomain.ErrTierCatalogUnavailable) {
			return ProfileOperationResult{}, err
		}

		player := &rankingdb.Player{
			PlayerID:    playerID,
			DisplayName: strings.TrimSpace(payload.DisplayName),
			Rating:      payload.Rating,
			Gender:      rankingdomain.ParseGender(payload.Gender),
		}
		if err := s.repo.UpsertPlayer(ctx, nil, player); err != nil {
			return ProfileOperationResult{}, fmt.Errorf("failed to store player profile: %w", err)
		}

		return results.SuccessResult[rankingevents.PlayerProfileSavedPayloadV1, rankingevents.RequestFailedPayloadV1](rankingevents.PlayerProfileSavedPayloadV1{
			PlayerID:    player.PlayerID,
			DisplayName: player.DisplayName,
			Rating:      player.Rating,
			Gender:      player.Gender,
			TierID:      resolution.Tier.ID,
			TierName:    resolution.Tier.Name,
		}), nil
	})
}
