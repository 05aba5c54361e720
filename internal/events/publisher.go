// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"conversation-feed-service/internal/observability/metrics"
)

// Publisher publishes conversation feed events to separate Kafka topics:
// one for immutable feed entries, one for feed revision notifications.
type Publisher struct {
	writerEntry  *kafka.Writer
	writerUpdate *kafka.Writer
	principal    string
	topicEntry   string
	topicUpdate  string
	enabled      bool
	metrics      *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers     []string
	TopicEntry  string
	TopicUpdate string
	Principal   string
	Enabled     bool
}

// New creates a new Kafka event publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:   cfg.Principal,
			topicEntry:  cfg.TopicEntry,
			topicUpdate: cfg.TopicUpdate,
			enabled:     false,
			metrics:     m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerEntry := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicEntry,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerUpdate := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicUpdate,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicEntry", cfg.TopicEntry).
		Str("topicUpdate", cfg.TopicUpdate).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerEntry:  writerEntry,
		writerUpdate: writerUpdate,
		principal:    cfg.Principal,
		topicEntry:   cfg.TopicEntry,
		topicUpdate:  cfg.TopicUpdate,
		enabled:      true,
		metrics:      m,
	}
}

// PublishEntry publishes an immutable feed entry event, keyed by room.
func (p *Publisher) PublishEntry(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerEntry, p.topicEntry, "entry", key, event)
}

// PublishUpdate publishes a feed revision notification, keyed by room.
func (p *Publisher) PublishUpdate(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerUpdate, p.topicUpdate, "update", key, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerEntry != nil {
		if e := p.writerEntry.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing entry writer")
			err = e
		}
	}
	if p.writerUpdate != nil {
		if e := p.writerUpdate.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing update writer")
			err = e
		}
	}
	return err
}
