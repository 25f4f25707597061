//go:build integration

package rankingintegrationtests

import (
	"context"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingservice "github.com/Black-And-White-Club/courtrank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/courtrank/integration_tests/testutils"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// testEnv is shared by every test in the package and reset between tests.
var testEnv *testutils.TestEnvironment

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	env, err := testutils.NewTestEnvironment(ctx, true)
	cancel()
	if err != nil {
		log.Fatalf("failed to start test environment: %v", err)
	}
	testEnv = env

	code := m.Run()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	testEnv.Terminate(ctx)
	cancel()
	os.Exit(code)
}

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// setup resets the database and returns a service backed by it.
func setup(t *testing.T) (context.Context, rankingdb.Repository, *rankingservice.RankingService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	require.NoError(t, testEnv.Reset(ctx))

	logger := quietLogger()
	repo := rankingdb.NewRepository(testEnv.DB)
	svc := rankingservice.NewRankingService(
		repo,
		rankingaggregator.New(rankingaggregator.Config{MinLeaderboardPlayers: 2}, logger, nil),
		rankingdomain.NewTierResolver(rankingdomain.DefaultTierCatalog(), false),
		logger, nil, noop.NewTracerProvider().Tracer("test"), testEnv.DB,
	)
	return ctx, repo, svc
}

func seed(t *testing.T, svc rankingservice.Service, id string, rating float64, gender string) {
	t.Helper()
	res, err := svc.UpsertPlayerProfile(context.Background(), rankingevents.PlayerProfileUpdatedPayloadV1{
		PlayerID: id,
		Rating:   rating,
		Gender:   gender,
	})
	require.NoError(t, err)
	require.True(t, res.IsSuccess(), "seeding %s", id)
}

func singles(id, winner, loser string, playedAt time.Time) rankingdomain.RawMatchSubmission {
	return rankingdomain.RawMatchSubmission{
		MatchID:     id,
		Format:      "singles",
		AgeDivision: "19plus",
		MatchType:   "casual",
		PlayedAt:    playedAt,
		Team1:       []string{winner},
		Team2:       []string{loser},
		Games:       []rankingdomain.GameScore{{Team1: 11, Team2: 5}, {Team1: 11, Team2: 8}},
	}
}
