package rankinghandlers

import (
	"context"
	"io"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingservice "github.com/Black-And-White-Club/courtrank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
)

// FakeRankingService is a programmable stub for rankingservice.Service.
type FakeRankingService struct {
	trace []string

	SubmitMatchFunc            func(ctx context.Context, raw rankingdomain.RawMatchSubmission) (rankingservice.MatchOperationResult, error)
	GetLeaderboardFunc         func(ctx context.Context, q rankingaggregator.LeaderboardQuery) (rankingaggregator.Leaderboard, error)
	GetPositionFunc            func(ctx context.Context, q rankingaggregator.PositionQuery) (rankingaggregator.Position, error)
	GetHistoryFunc             func(ctx context.Context, q rankingaggregator.HistoryQuery, limit int) ([]rankingaggregator.HistoryEntry, error)
	HistoryChartFunc           func(ctx context.Context, q rankingaggregator.HistoryQuery) ([]byte, error)
	GetTierCatalogFunc         func(ctx context.Context) []rankingdomain.RatingTier
	UpsertPlayerProfileFunc    func(ctx context.Context, payload rankingevents.PlayerProfileUpdatedPayloadV1) (rankingservice.ProfileOperationResult, error)
	ImportMatchesFunc          func(ctx context.Context, filename string, r io.Reader) (rankingservice.ImportReport, error)
	FindActivityShortfallsFunc func(ctx context.Context, now time.Time) ([]rankingevents.ActivityShortfallPayloadV1, error)
}

func NewFakeRankingService() *FakeRankingService {
	return &FakeRankingService{trace: []string{}}
}

func (f *FakeRankingService) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeRankingService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRankingService) SubmitMatch(ctx context.Context, raw rankingdomain.RawMatchSubmission) (rankingservice.MatchOperationResult, error) {
	f.record("SubmitMatch")
	if f.SubmitMatchFunc != nil {
		return f.SubmitMatchFunc(ctx, raw)
	}
	return rankingservice.MatchOperationResult{}, nil
}

func (f *FakeRankingService) GetLeaderboard(ctx context.Context, q rankingaggregator.LeaderboardQuery) (rankingaggregator.Leaderboard, error) {
	f.record("GetLeaderboard")
	if f.GetLeaderboardFunc != nil {
		return f.GetLeaderboardFunc(ctx, q)
	}
	return rankingaggregator.Leaderboard{}, nil
}

func (f *FakeRankingService) GetPosition(ctx context.Context, q rankingaggregator.PositionQuery) (rankingaggregator.Position, error) {
	f.record("GetPosition")
	if f.GetPositionFunc != nil {
		return f.GetPositionFunc(ctx, q)
	}
	return rankingaggregator.Position{}, nil
}

func (f *FakeRankingService) GetHistory(ctx context.Context, q rankingaggregator.HistoryQuery, limit int) ([]rankingaggregator.HistoryEntry, error) {
	f.record("GetHistory")
	if f.GetHistoryFunc != nil {
		return f.GetHistoryFunc(ctx, q, limit)
	}
	return nil, nil
}

func (f *FakeRankingService) HistoryChart(ctx context.Context, q rankingaggregator.HistoryQuery) ([]byte, error) {
	f.record("HistoryChart")
	if f.HistoryChartFunc != nil {
		return f.HistoryChartFunc(ctx, q)
	}
	return nil, nil
}

func (f *FakeRankingService) GetTierCatalog(ctx context.Context) []rankingdomain.RatingTier {
	f.record("GetTierCatalog")
	if f.GetTierCatalogFunc != nil {
		return f.GetTierCatalogFunc(ctx)
	}
	return nil
}

func (f *FakeRankingService) UpsertPlayerProfile(ctx context.Context, payload rankingevents.PlayerProfileUpdatedPayloadV1) (rankingservice.ProfileOperationResult, error) {
	f.record("UpsertPlayerProfile")
	if f.UpsertPlayerProfileFunc != nil {
		return f.UpsertPlayerProfileFunc(ctx, payload)
	}
	return rankingservice.ProfileOperationResult{}, nil
}

func (f *FakeRankingService) ImportMatches(ctx context.Context, filename string, r io.Reader) (rankingservice.ImportReport, error) {
	f.record("ImportMatches")
	if f.ImportMatchesFunc != nil {
		return f.ImportMatchesFunc(ctx, filename, r)
	}
	return rankingservice.ImportReport{}, nil
}

func (f *FakeRankingService) FindActivityShortfalls(ctx context.Context, now time.Time) ([]rankingevents.ActivityShortfallPayloadV1, error) {
	f.record("FindActivityShortfalls")
	if f.FindActivityShortfallsFunc != nil {
		return f.FindActivityShortfallsFunc(ctx, now)
	}
	return nil, nil
}

var _ rankingservice.Service = (*FakeRankingService)(nil)
