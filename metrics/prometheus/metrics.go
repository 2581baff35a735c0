// Package prometheus provides Prometheus metrics for the ChatKit
// message runtime.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatkit"

var (
	// queueDepth is a gauge of items waiting in the ingress and shard queues.
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "message_queue_depth",
			Help:      "Number of messages waiting in the ingress and shard queues",
		},
	)

	// queueLatency is a histogram of time spent queued before a worker picks
	// the item up.
	queueLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_queue_latency_seconds",
			Help:      "Histogram of time between ingress enqueue and worker pickup",
			Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		},
	)

	// messagesProcessed is a counter of messages fully handled by a worker.
	messagesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Total number of messages processed by workers",
		},
	)

	// errorsOccurred is a counter of runtime errors by kind.
	errorsOccurred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of runtime errors",
		},
		[]string{"kind"}, // kind: parse, handler, checkpoint, dlq, listener
	)

	// messagesDropped is a counter of frames dropped by the listener
	// backpressure policy or as unsupported.
	messagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of frames dropped before dispatch",
		},
		[]string{"reason"}, // reason: queue_full, evicted, unsupported
	)

	// duplicatesSuppressed is a counter of dedup hits.
	duplicatesSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_suppressed_total",
			Help:      "Total number of messages skipped by the checkpoint store",
		},
	)

	// deadLettered is a counter of DLQ submissions by reason.
	deadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_total",
			Help:      "Total number of payloads sent to the dead-letter queue",
		},
		[]string{"reason"}, // reason: parse_failed, command_failed
	)

	// httpRequestDuration is a histogram of gateway REST call duration.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of gateway REST calls in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	// httpRequestsTotal is a counter of gateway REST calls.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of gateway REST calls",
		},
		[]string{"method", "status"}, // status: success, error
	)

	// httpRetries is a counter of retried gateway calls.
	httpRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retries_total",
			Help:      "Total number of gateway call retry attempts",
		},
	)

	// circuitState is a gauge of the breaker state (0 closed, 1 open, 2 half-open).
	circuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
	)

	// wsReconnects is a counter of WebSocket reconnect attempts.
	wsReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		queueDepth,
		queueLatency,
		messagesProcessed,
		errorsOccurred,
		messagesDropped,
		duplicatesSuppressed,
		deadLettered,
		httpRequestDuration,
		httpRequestsTotal,
		httpRetries,
		circuitState,
		wsReconnects,
	}
)

// SetQueueDepth records the combined ingress and shard queue depth.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// ObserveQueueLatency records time an item spent queued.
func ObserveQueueLatency(seconds float64) {
	queueLatency.Observe(seconds)
}

// RecordMessageProcessed records a fully handled message.
func RecordMessageProcessed() {
	messagesProcessed.Inc()
}

// RecordError records a runtime error of the given kind.
func RecordError(kind string) {
	errorsOccurred.WithLabelValues(kind).Inc()
}

// RecordDrop records a frame dropped before dispatch.
func RecordDrop(reason string) {
	messagesDropped.WithLabelValues(reason).Inc()
}

// RecordDuplicate records a dedup suppression.
func RecordDuplicate() {
	duplicatesSuppressed.Inc()
}

// RecordDeadLetter records a DLQ submission.
func RecordDeadLetter(reason string) {
	deadLettered.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records one completed gateway call.
func RecordHTTPRequest(method, status string, durationSeconds float64) {
	httpRequestDuration.WithLabelValues(method).Observe(durationSeconds)
	httpRequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordHTTPRetry records a retry attempt.
func RecordHTTPRetry() {
	httpRetries.Inc()
}

// SetCircuitState records the breaker state.
func SetCircuitState(state int) {
	circuitState.Set(float64(state))
}

// RecordReconnect records a WebSocket reconnect attempt.
func RecordReconnect() {
	wsReconnects.Inc()
}
