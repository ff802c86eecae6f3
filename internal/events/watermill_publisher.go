package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// KafkaConfig configures the optional Kafka sink.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// Bus publishes every event on an in-process gochannel and forwards it to
// Kafka when brokers are configured. In-process subscribers (the leaderboard
// stream) read from the local side only.
type Bus struct {
	local       *gochannel.GoChannel
	remote      message.Publisher
	topicPrefix string
	logger      *slog.Logger
}

// NewBus creates a bus. An empty broker list keeps events in-process.
func NewBus(cfg KafkaConfig, logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	bus := &Bus{
		local: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, wmLogger),
		topicPrefix: cfg.TopicPrefix,
		logger:      logger,
	}

	if len(cfg.Brokers) > 0 {
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.Brokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		bus.remote = publisher
	}

	return bus, nil
}

// Topic maps an event type onto its topic name.
func (b *Bus) Topic(eventType string) string {
	if b.topicPrefix == "" {
		return eventType
	}
	return strings.TrimSuffix(b.topicPrefix, ".") + "." + eventType
}

func (b *Bus) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	topic := b.Topic(event.Type)
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	var errs []error
	if err := b.local.Publish(topic, msg); err != nil {
		errs = append(errs, fmt.Errorf("local publish: %w", err))
	}
	if b.remote != nil {
		if err := b.remote.Publish(topic, msg.Copy()); err != nil {
			errs = append(errs, fmt.Errorf("kafka publish: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	b.logger.DebugContext(ctx, "Event published",
		"event_id", event.ID,
		"event_type", event.Type,
		"topic", topic)
	return nil
}

// Subscribe returns decoded events of one type from the in-process side.
// The channel closes when ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, eventType string) (<-chan *Event, error) {
	messages, err := b.local.Subscribe(ctx, b.Topic(eventType))
	if err != nil {
		return nil, err
	}

	out := make(chan *Event)
	go func() {
		defer close(out)
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Warn("Dropping undecodable event", "error", err, "message_id", msg.UUID)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	var errs []error
	if b.remote != nil {
		errs = append(errs, b.remote.Close())
	}
	errs = append(errs, b.local.Close())
	return errors.Join(errs...)
}
