// Package kafka implements an optional secondary exporter that mirrors
// every StatsSnapshot the Aggregator produces onto a Kafka topic, for
// deployments that want traffic stats in a durable log alongside the
// live broadcast feed.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"dpinet.dev/dpinet/internal/log"
	"dpinet.dev/dpinet/internal/model"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

// Config configures the Kafka reporter.
type Config struct {
	Brokers []string
	Topic   string
}

// Reporter writes StatsSnapshots to Kafka as JSON messages keyed by
// interval start time.
type Reporter struct {
	writer *kafka.Writer
}

// New returns a Reporter bound to cfg. The writer is synchronous so
// write failures surface to the caller rather than being silently
// retried in the background.
func New(cfg Config) *Reporter {
	return &Reporter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    defaultBatchSize,
			BatchTimeout: defaultBatchTimeout,
			MaxAttempts:  defaultMaxAttempts,
			Async:        false,
		},
	}
}

// Report serializes snapshot and writes it to the configured topic.
func (r *Reporter) Report(ctx context.Context, snapshot model.StatsSnapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("reporter/kafka: marshal snapshot: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", snapshot.IntervalStartNanos)),
		Value: value,
		Time:  time.Unix(0, snapshot.IntervalEndNanos),
	}

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("reporter/kafka: write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (r *Reporter) Close() error {
	if err := r.writer.Close(); err != nil {
		log.GetLogger().WithField("component", "reporter.kafka").WithError(err).Warn("error closing kafka writer")
		return err
	}
	return nil
}
