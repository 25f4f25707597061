package rankinghandlers

import (
	"context"
	"errors"

	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/handlerwrapper"
)

// HandlePlayerProfileUpdated stores a player's rating and gender.
func (h *RankingHandlers) HandlePlayerProfileUpdated(ctx context.Context, payload *rankingevents.PlayerProfileUpdatedPayloadV1) ([]handlerwrapper.Result, error) {
	if payload == nil {
		return nil, errors.New("payload cannot be nil")
	}

	result, err := h.service.UpsertPlayerProfile(ctx, *payload)
	if err != nil {
		return nil, err
	}

	return mapOperationResult(result,
		rankingevents.PlayerProfileSavedV1,
		rankingevents.RequestFailedV1,
	), nil
}
