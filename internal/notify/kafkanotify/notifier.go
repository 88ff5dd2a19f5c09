// Package kafkanotify publishes report completion events to Kafka.
package kafkanotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/propscope/internal/core/config"
	"github.com/mohammed-shakir/propscope/internal/report"
)

const clientID = "propscope"

type Notifier struct {
	prod  sarama.SyncProducer
	topic string
	log   *slog.Logger
}

// New dials the brokers in cfg and returns a notifier writing to cfg.Topic.
func New(cfg config.EventsCfg, log *slog.Logger) (*Notifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.ClientID = clientID
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	sc.Producer.Retry.Backoff = 250 * time.Millisecond
	sc.Producer.Idempotent = false
	sc.Net.DialTimeout = 5 * time.Second

	prod, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewWithProducer(prod, cfg.Topic, log), nil
}

func NewWithProducer(prod sarama.SyncProducer, topic string, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{prod: prod, topic: topic, log: log}
}

// ReportCompleted publishes ev keyed by its report id, so every event of
// a report lands on the same partition.
func (n *Notifier) ReportCompleted(ctx context.Context, ev report.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     n.topic,
		Key:       sarama.StringEncoder(ev.ReportID),
		Value:     sarama.ByteEncoder(body),
		Timestamp: ev.CompletedAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}
	partition, offset, err := n.prod.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish report %q: %w", ev.ReportID, err)
	}
	n.log.DebugContext(ctx, "report event published",
		"topic", n.topic, "partition", partition, "offset", offset)
	return nil
}

func (n *Notifier) Close() error {
	if err := n.prod.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

var _ report.Notifier = (*Notifier)(nil)
