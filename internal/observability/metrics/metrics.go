// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_stream"

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Session metrics
	SessionsTotal     prometheus.Counter
	SessionsActive    prometheus.Gauge
	SessionsSucceeded prometheus.Counter
	SessionsFailed    prometheus.Counter
	SessionsCancelled prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Frame metrics, labelled by wire message type
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec

	// Sender pacing: how far behind the real-time schedule each send ran
	PacingLag prometheus.Histogram

	// Transcript metrics
	WordsReceived  prometheus.Counter
	PausesDetected prometheus.Counter

	// Audio metrics
	AudioSecondsSent     prometheus.Counter
	AudioSecondsReceived prometheus.Counter
	CaptureBlocksDropped prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates all metrics on the default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewTestMetrics creates metrics on a private registry so tests can
// construct more than one Metrics value per process.
func NewTestMetrics() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Session metrics
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of streaming sessions started",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active streaming sessions",
		}),
		SessionsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_succeeded_total",
			Help:      "Total number of sessions that completed normally",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended with an error",
		}),
		SessionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cancelled_total",
			Help:      "Total number of sessions ended by external cancellation",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of streaming sessions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Frame metrics
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total outbound wire frames by message type",
		}, []string{"type"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total inbound wire frames by message type",
		}, []string{"type"}),

		PacingLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pacing_lag_seconds",
			Help:      "How far behind the pacing schedule each audio send ran",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		// Transcript metrics
		WordsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_received_total",
			Help:      "Total transcript words received",
		}),
		PausesDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pauses_detected_total",
			Help:      "Total semantic VAD pauses detected",
		}),

		// Audio metrics
		AudioSecondsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_seconds_sent_total",
			Help:      "Seconds of source audio sent, excluding lead-in and trailer silence",
		}),
		AudioSecondsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_seconds_received_total",
			Help:      "Seconds of audio received from the server",
		}),
		CaptureBlocksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_blocks_dropped_total",
			Help:      "Capture blocks dropped because the session queue was full",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// SessionOutcome classifies how a session ended.
type SessionOutcome string

const (
	OutcomeSucceeded SessionOutcome = "succeeded"
	OutcomeFailed    SessionOutcome = "failed"
	OutcomeCancelled SessionOutcome = "cancelled"
)

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending with the given outcome.
func (m *Metrics) RecordSessionEnd(outcome SessionOutcome, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	switch outcome {
	case OutcomeSucceeded:
		m.SessionsSucceeded.Inc()
	case OutcomeCancelled:
		m.SessionsCancelled.Inc()
	default:
		m.SessionsFailed.Inc()
	}
}

// RecordFrameSent records one outbound frame of the given wire type.
func (m *Metrics) RecordFrameSent(msgType string) {
	m.FramesSent.WithLabelValues(msgType).Inc()
}

// RecordFrameReceived records one inbound frame of the given wire type.
func (m *Metrics) RecordFrameReceived(msgType string) {
	m.FramesReceived.WithLabelValues(msgType).Inc()
}

// RecordWord records a transcript word received.
func (m *Metrics) RecordWord() {
	m.WordsReceived.Inc()
}

// RecordPause records a semantic VAD pause detection.
func (m *Metrics) RecordPause() {
	m.PausesDetected.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
