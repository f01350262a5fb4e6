// Package kafka announces published artifacts on a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/ecem-data-etl/internal/config"
	"github.com/couchcryptid/ecem-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces artifact announcements to a Kafka topic.
// It implements pipeline.Announcer.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured artifact topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Announce publishes one message per artifact in a single WriteMessages call.
// Messages are keyed by artifact name so consumers see the latest version of
// each file in order.
func (w *Writer) Announce(ctx context.Context, artifacts []domain.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(artifacts))
	for i := range artifacts {
		msg, err := serializeToMessage(artifacts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("announce artifacts: %w", err)
	}
	w.logger.Info("artifacts announced", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Artifact into a Kafka message.
func serializeToMessage(art domain.Artifact) (kafkago.Message, error) {
	data, err := json.Marshal(art)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize artifact: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(art.Name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "step", Value: []byte(art.Step)},
			{Key: "sha256", Value: []byte(art.SHA256)},
			{Key: "generated_at", Value: []byte(art.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
