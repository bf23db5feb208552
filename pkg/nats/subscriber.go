package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-knowledgebase-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// Subscribe consumes subject with an ephemeral consumer when durableName is
// empty, otherwise with a durable one. It blocks until ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context, subject, durableName string, handler EventHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := Decode(msg.Subject(), msg.Headers(), msg.Data())
		if err != nil {
			msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}

// Decode rebuilds an event from a NATS message published by Publisher.
func Decode(subject string, header nats.Header, data []byte) (events.Event, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal event data: %w", err)
	}

	eventType := header.Get(headerEventType)
	if eventType == "" {
		eventType = subject
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, header.Get(headerOccurredAt))
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	return events.BaseEvent{
		Type:       eventType,
		Data:       payload,
		OccurredAt: occurredAt,
	}, nil
}

// Close closes the connection.
func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
