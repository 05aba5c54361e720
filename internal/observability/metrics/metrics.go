// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "conversation_feed"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Segment metrics
	SegmentsInserted      prometheus.Counter
	SegmentsUpdated       prometheus.Counter
	SegmentsFinalized     prometheus.Counter
	SegmentUpsertsIgnored *prometheus.CounterVec

	// Chat metrics
	ChatMessages       prometheus.Counter
	ChatDuplicates     prometheus.Counter
	ChatSendFailures   prometheus.Counter
	TimestampAnomalies prometheus.Counter

	// Feed metrics
	FeedRecomputes          prometheus.Counter
	FeedEmissions           prometheus.Counter
	FeedEmissionsSuppressed prometheus.Counter
	FeedEntries             *prometheus.GaugeVec

	// Membership metrics
	SourcesActive  prometheus.Gauge
	SourcesDropped *prometheus.CounterVec

	// Room metrics
	RoomsActive  prometheus.Gauge
	RoomsExpired prometheus.Counter

	// Transport metrics
	WSConnections *prometheus.GaugeVec
	WSEventsTotal *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SegmentsInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_inserted_total",
			Help:      "Total number of new segments observed",
		}),
		SegmentsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_updated_total",
			Help:      "Total number of in-place segment revisions",
		}),
		SegmentsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_finalized_total",
			Help:      "Total number of segments transitioned to final",
		}),
		SegmentUpsertsIgnored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_upserts_ignored_total",
			Help:      "Total number of segment upserts ignored",
		}, []string{"reason"}),

		ChatMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Total number of chat messages accepted",
		}),
		ChatDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_duplicates_total",
			Help:      "Total number of chat messages rejected as duplicate (senderId, timestamp) pairs",
		}),
		ChatSendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_send_failures_total",
			Help:      "Total number of failed chat send operations",
		}),
		TimestampAnomalies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamp_anomalies_total",
			Help:      "Total number of events with missing or invalid timestamps coerced to now",
		}),

		FeedRecomputes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_recomputes_total",
			Help:      "Total number of feed merge recomputations",
		}),
		FeedEmissions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_emissions_total",
			Help:      "Total number of feed emissions (structurally changed feeds)",
		}),
		FeedEmissionsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_emissions_suppressed_total",
			Help:      "Total number of recomputes that produced a structurally identical feed",
		}),
		FeedEntries: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_entries",
			Help:      "Current number of entries in a room feed",
		}, []string{"room"}),

		SourcesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources_active",
			Help:      "Number of currently registered transcription sources",
		}),
		SourcesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_departed_total",
			Help:      "Total number of source departures by applied policy",
		}, []string{"policy"}),

		RoomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of currently active rooms",
		}),
		RoomsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_expired_total",
			Help:      "Total number of rooms removed by the idle cleanup",
		}),

		WSConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of open websocket connections",
		}, []string{"kind"}),
		WSEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_events_total",
			Help:      "Total number of inbound websocket events",
		}, []string{"type", "outcome"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordUpsert records the outcome of a segment upsert.
func (m *Metrics) RecordUpsert(inserted, finalized bool) {
	if inserted {
		m.SegmentsInserted.Inc()
	} else {
		m.SegmentsUpdated.Inc()
	}
	if finalized {
		m.SegmentsFinalized.Inc()
	}
}

// RecordUpsertIgnored records an upsert that had no effect.
func (m *Metrics) RecordUpsertIgnored(reason string) {
	m.SegmentUpsertsIgnored.WithLabelValues(reason).Inc()
}

// RecordChatMessage records an accepted chat message.
func (m *Metrics) RecordChatMessage() {
	m.ChatMessages.Inc()
}

// RecordChatDuplicate records a rejected duplicate chat message.
func (m *Metrics) RecordChatDuplicate() {
	m.ChatDuplicates.Inc()
}

// RecordTimestampAnomaly records an event timestamp coerced to now.
func (m *Metrics) RecordTimestampAnomaly() {
	m.TimestampAnomalies.Inc()
}

// RecordRecompute records a feed merge and whether it was emitted.
func (m *Metrics) RecordRecompute(emitted bool) {
	m.FeedRecomputes.Inc()
	if emitted {
		m.FeedEmissions.Inc()
	} else {
		m.FeedEmissionsSuppressed.Inc()
	}
}

// RecordFeedSize records the current entry count of a room feed.
func (m *Metrics) RecordFeedSize(room string, entries int) {
	m.FeedEntries.WithLabelValues(room).Set(float64(entries))
}

// RecordSourceDeparture records a source departure under the given policy.
func (m *Metrics) RecordSourceDeparture(policy string) {
	m.SourcesDropped.WithLabelValues(policy).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordWSEvent records an inbound websocket event and its outcome.
func (m *Metrics) RecordWSEvent(eventType, outcome string) {
	m.WSEventsTotal.WithLabelValues(eventType, outcome).Inc()
}
