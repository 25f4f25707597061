package rankinghandlers

import (
	"context"
	"errors"

	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/handlerwrapper"
)

// HandleMatchSubmitted applies a submitted match and announces either the
// allocations or the rejection.
func (h *RankingHandlers) HandleMatchSubmitted(ctx context.Context, payload *rankingevents.MatchSubmittedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	result, err := h.service.SubmitMatch(ctx, payload.RawMatchSubmission)
	if err != nil {
		return nil, err
	}

	return mapOperationResult(result,
		rankingevents.PointsAllocatedV1,
		rankingevents.MatchRejectedV1,
	), nil
}
