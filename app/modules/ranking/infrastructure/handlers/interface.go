package rankinghandlers

import (
	"context"
	"net/http"

	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/handlerwrapper"
)

// Handlers defines the contract for ranking event and HTTP handlers.
type Handlers interface {
	HandleMatchSubmitted(ctx context.Context, payload *rankingevents.MatchSubmittedPayloadV1) ([]handlerwrapper.Result, error)
	HandlePlayerProfileUpdated(ctx context.Context, payload *rankingevents.PlayerProfileUpdatedPayloadV1) ([]handlerwrapper.Result, error)
	HandleLeaderboardRequested(ctx context.Context, payload *rankingevents.LeaderboardRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandlePositionRequested(ctx context.Context, payload *rankingevents.PositionRequestedPayloadV1) ([]handlerwrapper.Result, error)

	HandleHTTPSubmitMatch(w http.ResponseWriter, r *http.Request)
	HandleHTTPImportMatches(w http.ResponseWriter, r *http.Request)
	HandleHTTPUpsertPlayer(w http.ResponseWriter, r *http.Request)
	HandleHTTPLeaderboard(w http.ResponseWriter, r *http.Request)
	HandleHTTPPosition(w http.ResponseWriter, r *http.Request)
	HandleHTTPHistory(w http.ResponseWriter, r *http.Request)
	HandleHTTPHistoryChart(w http.ResponseWriter, r *http.Request)
	HandleHTTPTiers(w http.ResponseWriter, r *http.Request)
}
