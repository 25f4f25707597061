package rankingservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
	"github.com/Black-And-White-Club/courtrank/internal/results"
	"github.com/uptrace/bun"
)

func rejectMatch(matchID, code string, err error) MatchOperationResult {
	return results.FailureResult[rankingevents.PointsAllocatedPayloadV1](rankingevents.MatchRejectedPayloadV1{
		MatchID: matchID,
		Code:    code,
		Reason:  err.Error(),
	})
}

// SubmitMatch validates, allocates and applies one match. Submitting the same
// match again returns the stored outcome with Replayed set.
func (s *RankingService) SubmitMatch(ctx context.Context, raw rankingdomain.RawMatchSubmission) (MatchOperationResult, error) {
	return withTelemetry(s, ctx, "SubmitMatch", raw.MatchID, func(ctx context.Context) (MatchOperationResult, error) {
		match, err := rankingdomain.NormalizeMatch(raw)
		if err != nil {
			return rejectMatch(raw.MatchID, rankingevents.RejectInvalidMatch, err), nil
		}

		hash := rankingdomain.ComputeSubmissionHash(match)
		if match.PlayedAt.IsZero() {
			match.PlayedAt = s.now().UTC()
		}

		unlock := s.matchLocks.Lock(match.MatchID)
		defer unlock()

		// Totals and streaks read below feed the allocation, so every
		// participant's entry stays held until the writes are committed.
		playerIDs := sortedParticipants(match)
		keys := make([]rankingaggregator.EntryKey, len(playerIDs))
		for i, id := range playerIDs {
			keys[i] = rankingaggregator.EntryKey{PlayerID: id, Format: match.Format, AgeDivision: match.AgeDivision}
		}
		unlockEntries := s.aggregator.LockEntries(keys...)
		defer unlockEntries()

		result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB, repo rankingdb.Repository) (MatchOperationResult, error) {
			return s.applyMatch(ctx, db, repo, match, playerIDs, hash)
		})
		if errors.Is(err, rankingdb.ErrDuplicate) {
			return MatchOperationResult{}, fmt.Errorf("%w: %s", ErrMatchAlreadyRecorded, match.MatchID)
		}
		return result, err
	})
}

func sortedParticipants(match rankingdomain.MatchResult) []string {
	participants := match.Participants()
	playerIDs := make([]string, 0, len(participants))
	for id := range participants {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)
	return playerIDs
}

func (s *RankingService) applyMatch(ctx context.Context, db bun.IDB, repo rankingdb.Repository, match rankingdomain.MatchResult, playerIDs []string, hash string) (MatchOperationResult, error) {
	if replay, done, err := s.replayProcessed(ctx, db, repo, match.MatchID, hash); done || err != nil {
		return replay, err
	}

	profiles, err := repo.GetPlayers(ctx, db, playerIDs)
	if err != nil {
		return MatchOperationResult{}, fmt.Errorf("failed to load player profiles: %w", err)
	}
	var missing []string
	for _, id := range playerIDs {
		if _, ok := profiles[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return rejectMatch(match.MatchID, rankingevents.RejectUnknownPlayer,
			fmt.Errorf("%w: %s", ErrUnknownPlayer, strings.Join(missing, ", "))), nil
	}

	store := repo.RankingStore(db)
	contexts := make(map[string]rankingdomain.ParticipantContext, len(playerIDs))
	for _, id := range playerIDs {
		entry, err := store.GetEntry(ctx, rankingaggregator.EntryKey{
			PlayerID:    id,
			Format:      match.Format,
			AgeDivision: match.AgeDivision,
		})
		switch {
		case errors.Is(err, rankingaggregator.ErrEntryNotFound):
			entry = &rankingaggregator.Entry{}
		case err != nil:
			return MatchOperationResult{}, fmt.Errorf("failed to load ranking entry for %s: %w", id, err)
		}
		contexts[id] = rankingdomain.ParticipantContext{
			Rating:       profiles[id].Rating,
			Gender:       profiles[id].Gender,
			CurrentTotal: entry.Points,
			WinStreak:    entry.WinStreak,
		}
	}

	if s.resolver.Catalog() == nil {
		s.logger.WarnContext(ctx, "No tier catalog loaded, applying intermediate rules",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(match.MatchID),
		)
	}

	allocs, err := rankingdomain.AllocatePoints(match, contexts, s.resolver)
	switch {
	case errors.Is(err, rankingdomain.ErrTierCatalogUnavailable):
		return rejectMatch(match.MatchID, rankingevents.RejectTierCatalogUnavailable, err), nil
	case errors.Is(err, rankingdomain.ErrInvalidRating):
		return rejectMatch(match.MatchID, rankingevents.RejectInvalidRating, err), nil
	case err != nil:
		return rejectMatch(match.MatchID, rankingevents.RejectInvalidMatch, err), nil
	}

	entries, err := s.aggregator.ApplyLockedMatch(ctx, store, allocs, match.PlayedAt)
	if err != nil {
		return MatchOperationResult{}, fmt.Errorf("failed to apply allocations: %w", err)
	}

	outcome := rankingevents.PointsAllocatedPayloadV1{
		MatchID:     match.MatchID,
		Format:      match.Format,
		AgeDivision: match.AgeDivision,
		MatchType:   match.MatchType,
		PlayedAt:    match.PlayedAt,
		Winner:      match.Winner.String(),
		Allocations: allocs,
		Totals:      make([]rankingevents.PlayerTotal, len(entries)),
	}
	for i, e := range entries {
		outcome.Totals[i] = rankingevents.PlayerTotal{
			PlayerID:      e.Key.PlayerID,
			Points:        e.Points,
			MatchesPlayed: e.MatchesPlayed,
			WinStreak:     e.WinStreak,
		}
		s.metrics.RecordPointsAllocated(ctx, string(match.Format), string(match.AgeDivision), int(allocs[i].FinalPoints))
	}

	body, err := json.Marshal(outcome)
	if err != nil {
		return MatchOperationResult{}, fmt.Errorf("failed to encode match outcome: %w", err)
	}
	err = repo.InsertProcessedMatch(ctx, db, &rankingdb.ProcessedMatch{
		MatchID:        match.MatchID,
		SubmissionHash: hash,
		Outcome:        body,
	})
	if errors.Is(err, rankingdb.ErrDuplicate) {
		// Another process applied the same match id first.
		return MatchOperationResult{}, fmt.Errorf("%w: %s", ErrMatchAlreadyRecorded, match.MatchID)
	}
	if err != nil {
		return MatchOperationResult{}, fmt.Errorf("failed to mark match processed: %w", err)
	}

	return results.SuccessResult[rankingevents.PointsAllocatedPayloadV1, rankingevents.MatchRejectedPayloadV1](outcome), nil
}

// replayProcessed reports done when matchID was already applied, returning
// the stored outcome for an identical submission or a rejection otherwise.
func (s *RankingService) replayProcessed(ctx context.Context, db bun.IDB, repo rankingdb.Repository, matchID, hash string) (MatchOperationResult, bool, error) {
	prior, err := repo.GetProcessedMatch(ctx, db, matchID)
	if errors.Is(err, rankingdb.ErrNotFound) {
		return MatchOperationResult{}, false, nil
	}
	if err != nil {
		return MatchOperationResult{}, false, fmt.Errorf("failed to check processed match: %w", err)
	}

	if prior.SubmissionHash != hash {
		return rejectMatch(matchID, rankingevents.RejectAlreadyRecorded,
			fmt.Errorf("%w: %s", ErrMatchAlreadyRecorded, matchID)), true, nil
	}

	var outcome rankingevents.PointsAllocatedPayloadV1
	if err := json.Unmarshal(prior.Outcome, &outcome); err != nil {
		return MatchOperationResult{}, false, fmt.Errorf("failed to decode stored outcome: %w", err)
	}
	outcome.Replayed = true
	s.logger.InfoContext(ctx, "Match already applied, returning stored outcome",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(matchID),
	)
	return results.SuccessResult[rankingevents.PointsAllocatedPayloadV1, rankingevents.MatchRejectedPayloadV1](outcome), true, nil
}
