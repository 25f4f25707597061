package rankingrouter

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingservice "github.com/Black-And-White-Club/courtrank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	rankinghandlers "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/handlers"
	rankingdb "github.com/Black-And-White-Club/courtrank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/courtrank/internal/eventbus"
	"github.com/Black-And-White-Club/courtrank/internal/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func startRouter(t *testing.T) (context.Context, eventbus.EventBus, rankingservice.Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.DiscardHandler)
	tracer := noop.NewTracerProvider().Tracer("test")
	bus := eventbus.NewGoChannelEventBus(logger)
	t.Cleanup(func() { _ = bus.Close() })

	svc := rankingservice.NewRankingService(
		rankingdb.NewMemoryRepository(),
		rankingaggregator.New(rankingaggregator.Config{MinLeaderboardPlayers: 2}, logger, nil),
		rankingdomain.NewTierResolver(rankingdomain.DefaultTierCatalog(), false),
		logger, nil, tracer, nil,
	)

	wmRouter, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	r := NewRankingRouter(logger, wmRouter, bus, bus, tracer, nil)
	require.NoError(t, r.Configure(ctx, rankinghandlers.NewRankingHandlers(svc, logger, tracer)))

	go func() { _ = wmRouter.Run(ctx) }()
	select {
	case <-wmRouter.Running():
	case <-ctx.Done():
		t.Fatal("router did not start")
	}
	t.Cleanup(func() { _ = r.Close() })

	return ctx, bus, svc
}

func publishJSON(t *testing.T, bus eventbus.EventBus, topic string, payload any, metadata map[string]string) string {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	msg := message.NewMessage(watermill.NewUUID(), body)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}
	correlationID := watermill.NewShortUUID()
	middleware.SetCorrelationID(correlationID, msg)
	require.NoError(t, bus.Publish(topic, msg))
	return correlationID
}

func receive(t *testing.T, ctx context.Context, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-ctx.Done():
		t.Fatal("no message received")
		return nil
	}
}

func TestRankingRouter_MatchSubmittedFlow(t *testing.T) {
	ctx, bus, svc := startRouter(t)

	for _, id := range []string{"alice", "bob"} {
		res, err := svc.UpsertPlayerProfile(ctx, rankingevents.PlayerProfileUpdatedPayloadV1{PlayerID: id, Rating: 5})
		require.NoError(t, err)
		require.True(t, res.IsSuccess())
	}

	allocated, err := bus.Subscribe(ctx, rankingevents.PointsAllocatedV1)
	require.NoError(t, err)
	rejected, err := bus.Subscribe(ctx, rankingevents.MatchRejectedV1)
	require.NoError(t, err)

	correlationID := publishJSON(t, bus, rankingevents.MatchSubmittedV1, rankingevents.MatchSubmittedPayloadV1{
		RawMatchSubmission: rankingdomain.RawMatchSubmission{
			MatchID:     "m1",
			Format:      "singles",
			AgeDivision: "19plus",
			MatchType:   "casual",
			Team1:       []string{"alice"},
			Team2:       []string{"bob"},
			Games:       []rankingdomain.GameScore{{Team1: 11, Team2: 4}, {Team1: 11, Team2: 6}},
		},
	}, nil)

	msg := receive(t, ctx, allocated)
	assert.Equal(t, correlationID, middleware.MessageCorrelationID(msg))
	var out rankingevents.PointsAllocatedPayloadV1
	require.NoError(t, json.Unmarshal(msg.Payload, &out))
	assert.Equal(t, "m1", out.MatchID)
	assert.Len(t, out.Allocations, 2)

	publishJSON(t, bus, rankingevents.MatchSubmittedV1, rankingevents.MatchSubmittedPayloadV1{
		RawMatchSubmission: rankingdomain.RawMatchSubmission{
			MatchID:     "m2",
			Format:      "singles",
			AgeDivision: "19plus",
			MatchType:   "casual",
			Team1:       []string{"alice"},
			Team2:       []string{"bob"},
			Games:       []rankingdomain.GameScore{{Team1: 11, Team2: 11}},
		},
	}, nil)

	msg = receive(t, ctx, rejected)
	var rej rankingevents.MatchRejectedPayloadV1
	require.NoError(t, json.Unmarshal(msg.Payload, &rej))
	assert.Equal(t, rankingevents.RejectInvalidMatch, rej.Code)
}

func TestRankingRouter_LeaderboardReplyTo(t *testing.T) {
	ctx, bus, _ := startRouter(t)

	replies, err := bus.Subscribe(ctx, "ranking.test.reply")
	require.NoError(t, err)

	publishJSON(t, bus, rankingevents.LeaderboardRequestedV1, rankingevents.LeaderboardRequestedPayloadV1{
		Format:      "singles",
		AgeDivision: "19plus",
	}, map[string]string{handlerwrapper.ReplyToMetadataKey: "ranking.test.reply"})

	msg := receive(t, ctx, replies)
	var board rankingevents.LeaderboardResponsePayloadV1
	require.NoError(t, json.Unmarshal(msg.Payload, &board))
	assert.Equal(t, rankingaggregator.LeaderboardInsufficientPlayers, board.Status)
	assert.Equal(t, 2, board.RequiredCount)
}
