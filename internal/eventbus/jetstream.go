package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	nc "github.com/nats-io/nats.go"
)

// NewJetStreamEventBus connects to NATS with JetStream enabled. The stream is
// created when missing and captures every subject under "<prefix>.>", so
// events survive a restart of this service.
func NewJetStreamEventBus(ctx context.Context, natsURL, appName, streamName, subjectPrefix string, logger *slog.Logger) (EventBus, error) {
	if !isValidStreamName(streamName) {
		return nil, fmt.Errorf("invalid stream name: %q", streamName)
	}

	natsConn, err := nc.Connect(natsURL,
		nc.Name(appName),
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30*time.Second),
		nc.ReconnectWait(time.Second),
		nc.MaxReconnects(-1),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("NATS subscription error",
					slog.String("subject", s.Subject),
					slog.String("queue", s.Queue),
					slog.String("error", err.Error()),
				)
				return
			}
			logger.Error("NATS connection error", slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := natsConn.JetStream()
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if err := ensureStream(ctx, js, streamName, subjectPrefix+".>", logger); err != nil {
		natsConn.Close()
		return nil, err
	}

	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}
	jsConfig := wmnats.JetStreamConfig{
		Disabled:      false,
		AutoProvision: false,
		SubscribeOptions: []nc.SubOpt{
			nc.DeliverAll(),
			nc.AckExplicit(),
		},
	}
	natsOptions := []nc.Option{nc.Name(appName), nc.RetryOnFailedConnect(true), nc.MaxReconnects(-1)}

	publisher, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: natsOptions,
		Marshaler:   marshaler,
		JetStream:   jsConfig,
	}, wmLogger)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:               natsURL,
		QueueGroupPrefix:  appName,
		SubscribersCount:  4,
		AckWaitTimeout:    30 * time.Second,
		NatsOptions:       natsOptions,
		Unmarshaler:       marshaler,
		JetStream:         jsConfig,
		SubjectCalculator: wmnats.DefaultSubjectCalculator,
	}, wmLogger)
	if err != nil {
		natsConn.Close()
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create JetStream subscriber: %w", err)
	}

	logger.InfoContext(ctx, "Connected to NATS JetStream",
		slog.String("url", natsURL),
		slog.String("stream", streamName),
	)

	return &eventBus{
		publisher:  publisher,
		subscriber: subscriber,
		natsConn:   natsConn,
		logger:     logger,
	}, nil
}

// ensureStream creates the stream if it does not exist yet.
func ensureStream(ctx context.Context, js nc.JetStreamContext, name, subject string, logger *slog.Logger) error {
	info, err := js.StreamInfo(name, nc.Context(ctx))
	if err != nil && !errors.Is(err, nc.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info: %w", err)
	}
	if info != nil {
		logger.InfoContext(ctx, "Stream already exists", slog.String("stream", name))
		return nil
	}

	_, err = js.AddStream(&nc.StreamConfig{
		Name:      name,
		Subjects:  []string{subject},
		Retention: nc.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nc.FileStorage,
	}, nc.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to add stream %s: %w", name, err)
	}

	logger.InfoContext(ctx, "Stream created", slog.String("stream", name), slog.String("subject", subject))
	return nil
}

// isValidStreamName checks a stream name against the NATS rules: letters,
// digits, hyphens and underscores, not starting or ending with a hyphen.
func isValidStreamName(name string) bool {
	for _, r := range name {
		if !isValidRune(r) {
			return false
		}
	}
	return name != "" && name[0] != '-' && name[len(name)-1] != '-'
}

func isValidRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}
