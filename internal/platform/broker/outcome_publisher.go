package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOutcomeWriter publishes vend outcomes keyed by order id.
type KafkaOutcomeWriter struct {
	writer messageWriter
}

func NewKafkaOutcomeWriter(brokers []string, topic string) *KafkaOutcomeWriter {
	return &KafkaOutcomeWriter{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (w *KafkaOutcomeWriter) PublishOutcome(ctx context.Context, outcome domain.VendOutcome) error {
	value, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	err = w.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(outcome.OrderID),
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(outcome.EventType)}},
	})
	if err != nil {
		return fmt.Errorf("kafka write outcome: %w", err)
	}
	return nil
}

func (w *KafkaOutcomeWriter) Close() error {
	return w.writer.Close()
}

type natsConn interface {
	Publish(subject string, data []byte) error
	Close()
}

type NATSPublisher struct {
	conn    natsConn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("mineral-kiosk"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) PublishOutcome(_ context.Context, outcome domain.VendOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("nats publish outcome: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// FanOutPublisher hands each outcome to every configured publisher.
type FanOutPublisher struct {
	publishers []port.OutcomePublisher
}

// NewFanOutPublisher returns nil when no publisher is configured.
func NewFanOutPublisher(publishers ...port.OutcomePublisher) *FanOutPublisher {
	kept := make([]port.OutcomePublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &FanOutPublisher{publishers: kept}
}

func (f *FanOutPublisher) PublishOutcome(ctx context.Context, outcome domain.VendOutcome) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, p := range f.publishers {
		if err := p.PublishOutcome(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Debug("vend outcome published", slog.String("event", outcome.EventType), slog.String("orderId", outcome.OrderID), slog.Int("targets", len(f.publishers)))
	return nil
}

var (
	_ port.OutcomePublisher = (*KafkaOutcomeWriter)(nil)
	_ port.OutcomePublisher = (*NATSPublisher)(nil)
	_ port.OutcomePublisher = (*FanOutPublisher)(nil)
)
