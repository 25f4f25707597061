// Package rankingevents defines the topics and payloads exchanged by the
// ranking module.
package rankingevents

import (
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
)

// Inbound topics.
const (
	MatchSubmittedV1       = "ranking.match.submitted.v1"
	PlayerProfileUpdatedV1 = "ranking.player.profile.updated.v1"
	LeaderboardRequestedV1 = "ranking.leaderboard.requested.v1"
	PositionRequestedV1    = "ranking.position.requested.v1"
)

// Outbound topics.
const (
	PointsAllocatedV1     = "ranking.points.allocated.v1"
	MatchRejectedV1       = "ranking.match.rejected.v1"
	PlayerProfileSavedV1  = "ranking.player.profile.saved.v1"
	LeaderboardResponseV1 = "ranking.leaderboard.response.v1"
	PositionResponseV1    = "ranking.position.response.v1"
	RequestFailedV1       = "ranking.request.failed.v1"
	ActivityShortfallV1   = "ranking.activity.shortfall.v1"
)

// Rejection codes carried by MatchRejectedPayloadV1.
const (
	RejectInvalidMatch           = "invalid_match"
	RejectUnknownPlayer          = "unknown_player"
	RejectAlreadyRecorded        = "already_recorded"
	RejectTierCatalogUnavailable = "tier_catalog_unavailable"
	RejectInvalidRating          = "invalid_rating"
	RejectUnreadableRow          = "unreadable_row"
)

// MatchSubmittedPayloadV1 is a completed match as reported by the match-entry
// collaborator.
type MatchSubmittedPayloadV1 struct {
	rankingdomain.RawMatchSubmission
}

// PlayerTotal is a player's overall standing after a match.
type PlayerTotal struct {
	PlayerID      string               `json:"player_id"`
	Points        rankingdomain.Points `json:"points"`
	MatchesPlayed int                  `json:"matches_played"`
	WinStreak     int                  `json:"win_streak"`
}

// PointsAllocatedPayloadV1 is the outcome of one applied match.
type PointsAllocatedPayloadV1 struct {
	MatchID     string                           `json:"match_id"`
	Format      rankingdomain.PlayFormat         `json:"format"`
	AgeDivision rankingdomain.AgeDivision        `json:"age_division"`
	MatchType   rankingdomain.MatchType          `json:"match_type"`
	PlayedAt    time.Time                        `json:"played_at"`
	Winner      string                           `json:"winner"`
	Allocations []rankingdomain.PointsAllocation `json:"allocations"`
	Totals      []PlayerTotal                    `json:"totals"`
	// Replayed is set when the outcome was stored by an earlier identical
	// submission.
	Replayed bool `json:"replayed,omitempty"`
}

// MatchRejectedPayloadV1 reports a submission that changed nothing.
type MatchRejectedPayloadV1 struct {
	MatchID string `json:"match_id"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// PlayerProfileUpdatedPayloadV1 creates or replaces a player profile.
type PlayerProfileUpdatedPayloadV1 struct {
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name,omitempty"`
	Rating      float64 `json:"rating"`
	Gender      string  `json:"gender,omitempty"`
}

// PlayerProfileSavedPayloadV1 echoes a stored profile with its resolved tier.
type PlayerProfileSavedPayloadV1 struct {
	PlayerID    string               `json:"player_id"`
	DisplayName string               `json:"display_name,omitempty"`
	Rating      float64              `json:"rating"`
	Gender      rankingdomain.Gender `json:"gender,omitempty"`
	TierID      string               `json:"tier_id"`
	TierName    string               `json:"tier_name"`
}

// LeaderboardRequestedPayloadV1 asks for one leaderboard page.
type LeaderboardRequestedPayloadV1 struct {
	Format      string `json:"format"`
	AgeDivision string `json:"age_division"`
	TierID      string `json:"tier_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// LeaderboardResponsePayloadV1 answers LeaderboardRequestedPayloadV1.
type LeaderboardResponsePayloadV1 struct {
	rankingaggregator.Leaderboard
}

// PositionRequestedPayloadV1 asks for one player's standing.
type PositionRequestedPayloadV1 struct {
	PlayerID    string `json:"player_id"`
	Format      string `json:"format"`
	AgeDivision string `json:"age_division"`
	TierID      string `json:"tier_id,omitempty"`
}

// PositionResponsePayloadV1 answers PositionRequestedPayloadV1.
type PositionResponsePayloadV1 struct {
	rankingaggregator.Position
}

// RequestFailedPayloadV1 reports a request that could not be answered.
type RequestFailedPayloadV1 struct {
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

// ActivityShortfallPayloadV1 flags a player below their tier's monthly match
// minimum.
type ActivityShortfallPayloadV1 struct {
	PlayerID        string    `json:"player_id"`
	TierID          string    `json:"tier_id"`
	TierCategory    string    `json:"tier_category"`
	MatchesPlayed   int       `json:"matches_played"`
	MinimumRequired int       `json:"minimum_required"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
}
