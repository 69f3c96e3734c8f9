package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quakewatch/internal/config"
	"github.com/couchcryptid/quakewatch/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer appends delivered publications to the archive topic.
// It implements pipeline.Archiver.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured archive topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &Writer{writer: w, logger: logger}
}

// Archive writes one publication, keyed by event URL so every delivery of an
// event lands on the same partition.
func (w *Writer) Archive(ctx context.Context, pub domain.Publication) error {
	msg, err := serializeToMessage(pub)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("archive publication: %w", err)
	}
	w.logger.Debug("publication archived", "event_url", pub.EventURL, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Publication into a Kafka message.
func serializeToMessage(pub domain.Publication) (kafkago.Message, error) {
	data, err := json.Marshal(pub)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize publication: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(pub.EventURL),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(outcome(pub))},
			{Key: "published_at", Value: []byte(pub.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}

func outcome(pub domain.Publication) string {
	if pub.WithMap {
		return "published"
	}
	return "published_text_only"
}
