// Package eventbus provides the watermill publisher/subscriber pair used by
// the routers, backed either by NATS or by an in-process channel.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
)

// TopicMetadataKey names the metadata entry that carries a message's topic when
// a handler publishes without a fixed output topic.
const TopicMetadataKey = "topic"

// ErrNoTopic is returned when neither the publish call nor the message names a topic.
var ErrNoTopic = errors.New("eventbus: message has no topic")

// EventBus is a watermill publisher and subscriber with a health probe.
type EventBus interface {
	message.Publisher
	message.Subscriber
	Healthy(ctx context.Context) error
}

type eventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	// shared is set when publisher and subscriber are the same object.
	shared    bool
	natsConn  *nc.Conn
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewGoChannelEventBus returns an in-process bus. Messages are not persisted.
func NewGoChannelEventBus(logger *slog.Logger) EventBus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, watermill.NewSlogLogger(logger))

	return &eventBus{
		publisher:  pubsub,
		subscriber: pubsub,
		shared:     true,
		logger:     logger,
	}
}

// NewNATSEventBus connects to NATS and returns a bus whose subscribers share a
// queue group per handler, so several instances split the work.
func NewNATSEventBus(ctx context.Context, natsURL, appName string, logger *slog.Logger) (EventBus, error) {
	natsConn, err := nc.Connect(natsURL, nc.Name(appName), nc.MaxReconnects(-1))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to NATS", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}
	natsOptions := []nc.Option{
		nc.Name(appName),
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
	}

	publisher, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: natsOptions,
		Marshaler:   marshaler,
		JetStream:   wmnats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:              natsURL,
		QueueGroupPrefix: appName,
		SubscribersCount: 4,
		NatsOptions:      natsOptions,
		Unmarshaler:      marshaler,
		JetStream:        wmnats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		natsConn.Close()
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
	}

	logger.InfoContext(ctx, "Connected to NATS", slog.String("url", natsURL))

	return &eventBus{
		publisher:  publisher,
		subscriber: subscriber,
		natsConn:   natsConn,
		logger:     logger,
	}, nil
}

// Publish sends messages to topic. With an empty topic each message is routed
// by its TopicMetadataKey metadata.
func (eb *eventBus) Publish(topic string, messages ...*message.Message) error {
	if topic != "" {
		return eb.publisher.Publish(topic, messages...)
	}

	for _, msg := range messages {
		if msg.UUID == "" {
			msg.UUID = watermill.NewUUID()
		}
		msgTopic := msg.Metadata.Get(TopicMetadataKey)
		if msgTopic == "" {
			return fmt.Errorf("%w: %s", ErrNoTopic, msg.UUID)
		}
		eb.logger.Debug("Publishing message",
			slog.String("topic", msgTopic),
			slog.String("message_id", msg.UUID),
		)
		if err := eb.publisher.Publish(msgTopic, msg); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", msgTopic, err)
		}
	}
	return nil
}

func (eb *eventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	eb.logger.InfoContext(ctx, "Subscribing to topic", slog.String("topic", topic))
	return eb.subscriber.Subscribe(ctx, topic)
}

// Healthy reports whether the transport is usable.
func (eb *eventBus) Healthy(_ context.Context) error {
	if eb.natsConn == nil {
		return nil
	}
	if status := eb.natsConn.Status(); status != nc.CONNECTED {
		return fmt.Errorf("nats connection is %s", status)
	}
	return nil
}

// Close closes the publisher, the subscriber and the NATS connection once.
func (eb *eventBus) Close() error {
	var errs []error
	eb.closeOnce.Do(func() {
		if err := eb.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
		if !eb.shared {
			if err := eb.subscriber.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if eb.natsConn != nil {
			eb.natsConn.Close()
		}
	})
	return errors.Join(errs...)
}
