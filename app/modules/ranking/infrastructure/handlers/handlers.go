package rankinghandlers

import (
	"fmt"
	"log/slog"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingservice "github.com/Black-And-White-Club/courtrank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	"github.com/Black-And-White-Club/courtrank/internal/handlerwrapper"
	"github.com/Black-And-White-Club/courtrank/internal/results"
	"go.opentelemetry.io/otel/trace"
)

// RankingHandlers implements the Handlers interface for ranking events and
// the HTTP API.
type RankingHandlers struct {
	service rankingservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRankingHandlers creates a new RankingHandlers instance.
func NewRankingHandlers(service rankingservice.Service, logger *slog.Logger, tracer trace.Tracer) *RankingHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// mapOperationResult converts a service OperationResult to handler Results.
func mapOperationResult[S any, F any](
	result results.OperationResult[S, F],
	successTopic, failureTopic string,
) []handlerwrapper.Result {
	switch {
	case result.IsSuccess():
		return []handlerwrapper.Result{{Topic: successTopic, Payload: *result.Success}}
	case result.IsFailure():
		return []handlerwrapper.Result{{Topic: failureTopic, Payload: *result.Failure}}
	default:
		return nil
	}
}

// parseSlice reads a leaderboard slice from request fields.
func parseSlice(format, ageDivision, tierID string) (rankingaggregator.SliceKey, error) {
	f, err := rankingdomain.ParsePlayFormat(format)
	if err != nil {
		return rankingaggregator.SliceKey{}, err
	}
	d, err := rankingdomain.ParseAgeDivision(ageDivision)
	if err != nil {
		return rankingaggregator.SliceKey{}, err
	}
	return rankingaggregator.SliceKey{Format: f, AgeDivision: d, TierID: tierID}, nil
}

func requestFailed(topic string, err error) string {
	return fmt.Sprintf("%s: %v", topic, err)
}
