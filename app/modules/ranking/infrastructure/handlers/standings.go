package rankinghandlers

import (
	"context"
	"errors"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/handlerwrapper"
)

// HandleLeaderboardRequested answers with one leaderboard page on the
// requester's reply topic, or the shared response topic when none is given.
func (h *RankingHandlers) HandleLeaderboardRequested(ctx context.Context, payload *rankingevents.LeaderboardRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	slice, err := parseSlice(payload.Format, payload.AgeDivision, payload.TierID)
	if err != nil {
		return []handlerwrapper.Result{{
			Topic: rankingevents.RequestFailedV1,
			Payload: rankingevents.RequestFailedPayloadV1{
				Topic:  rankingevents.LeaderboardRequestedV1,
				Reason: requestFailed("invalid leaderboard request", err),
			},
		}}, nil
	}

	board, err := h.service.GetLeaderboard(ctx, rankingaggregator.LeaderboardQuery{
		Slice:  slice,
		Limit:  payload.Limit,
		Offset: payload.Offset,
	})
	if err != nil {
		return nil, err
	}

	return []handlerwrapper.Result{{
		Topic:   handlerwrapper.ReplyTopic(ctx, rankingevents.LeaderboardResponseV1),
		Payload: rankingevents.LeaderboardResponsePayloadV1{Leaderboard: board},
	}}, nil
}

// HandlePositionRequested answers with one player's standing.
func (h *RankingHandlers) HandlePositionRequested(ctx context.Context, payload *rankingevents.PositionRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	slice, err := parseSlice(payload.Format, payload.AgeDivision, payload.TierID)
	if err == nil && payload.PlayerID == "" {
		err = errors.New("player_id is required")
	}
	if err != nil {
		return []handlerwrapper.Result{{
			Topic: rankingevents.RequestFailedV1,
			Payload: rankingevents.RequestFailedPayloadV1{
				Topic:  rankingevents.PositionRequestedV1,
				Reason: requestFailed("invalid position request", err),
			},
		}}, nil
	}

	pos, err := h.service.GetPosition(ctx, rankingaggregator.PositionQuery{
		PlayerID: payload.PlayerID,
		Slice:    slice,
	})
	if err != nil {
		return nil, err
	}

	return []handlerwrapper.Result{{
		Topic:   handlerwrapper.ReplyTopic(ctx, rankingevents.PositionResponseV1),
		Payload: rankingevents.PositionResponsePayloadV1{Position: pos},
	}}, nil
}
