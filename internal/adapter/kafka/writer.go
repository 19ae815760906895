package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/floodguard/internal/config"
	"github.com/couchcryptid/floodguard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the alert writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// AlertWriter publishes alert tier transitions to a Kafka topic.
// It implements session.Notifier.
type AlertWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAlertTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &AlertWriter{writer: w, logger: logger}
}

// NotifyAlert serializes the event and writes it keyed by device id, so all
// transitions for one device land on the same partition in order.
func (w *AlertWriter) NotifyAlert(ctx context.Context, event domain.AlertEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write alert for %s: %w", event.DeviceID, err)
	}
	w.logger.Debug("alert published", "device_id", event.DeviceID, "alert_level", event.Current)
	return nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AlertEvent into a Kafka message.
func serializeToMessage(event domain.AlertEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.DeviceID),
		Value: data,
		Time:  event.ObservedAt,
		Headers: []kafkago.Header{
			{Key: "alert_level", Value: []byte(event.Current.String())},
			{Key: "observed_at", Value: []byte(event.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}
