package rankingservice

import (
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/results"
)

// MatchOperationResult is the outcome of SubmitMatch.
type MatchOperationResult = results.OperationResult[rankingevents.PointsAllocatedPayloadV1, rankingevents.MatchRejectedPayloadV1]

// ProfileOperationResult is the outcome of UpsertPlayerProfile.
type ProfileOperationResult = results.OperationResult[rankingevents.PlayerProfileSavedPayloadV1, rankingevents.RequestFailedPayloadV1]

// ImportRow reports one imported sheet row.
type ImportRow struct {
	Row     int    `json:"row"`
	MatchID string `json:"match_id"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Import row statuses.
const (
	ImportAccepted = "accepted"
	ImportReplayed = "replayed"
	ImportRejected = "rejected"
)

// ImportReport summarizes one bulk import.
type ImportReport struct {
	BatchID  string      `json:"batch_id"`
	Accepted int         `json:"accepted"`
	Rejected int         `json:"rejected"`
	Rows     []ImportRow `json:"rows"`
}
