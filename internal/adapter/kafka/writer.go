package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/modvolc-etl/internal/config"
	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

// Writer publishes filtered anomaly records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// AnomalyMessage is the JSON value of a published record.
type AnomalyMessage struct {
	ID       string    `json:"id"`
	Site     string    `json:"site"`
	Time     time.Time `json:"time"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Radiance float64   `json:"radiance"`
	NTI      float64   `json:"nti"`
}

// Publish serializes the records of one run and writes them in a single
// WriteMessages call. Records are keyed by their content ID so a re-published
// alert lands on the same partition.
func (w *Writer) Publish(ctx context.Context, runID string, site domain.Site, records []domain.AnomalyRecord) error {
	if len(records) == 0 {
		return nil
	}
	publishedAt := domain.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(runID, site, records[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	w.logger.Debug("records published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AnomalyRecord into a Kafka message.
func serializeToMessage(runID string, site domain.Site, rec domain.AnomalyRecord, publishedAt time.Time) (kafkago.Message, error) {
	id := rec.ID()
	data, err := json.Marshal(AnomalyMessage{
		ID:       id,
		Site:     site.Name,
		Time:     rec.Time,
		Lat:      rec.Lat,
		Lon:      rec.Lon,
		Radiance: rec.Radiance,
		NTI:      rec.NTI,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize anomaly record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(id),
		Value: data,
		Time:  rec.Time,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "site", Value: []byte(site.Slug())},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
