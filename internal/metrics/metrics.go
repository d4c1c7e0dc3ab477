// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Source polling and play discovery
// - Scrobble client queues and delivery
// - Dead letter queue depth and retries
// - API endpoint latency and throughput
// - WebSocket connections

var (
	// Source Metrics
	PlaysDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_plays_discovered_total",
			Help: "Total number of new plays discovered per source",
		},
		[]string{"source"},
	)

	DiscoveryDuplicates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_discovery_duplicates_total",
			Help: "Total number of plays discarded as duplicates of recently discovered plays",
		},
		[]string{"source"},
	)

	PlaysDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_plays_dropped_total",
			Help: "Total number of plays dropped before ingestion",
		},
		[]string{"source", "reason"}, // "invalid", "transform", "threshold", "backlog"
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_poll_duration_seconds",
			Help:    "Duration of source poll requests in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"source"},
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_poll_errors_total",
			Help: "Total number of source poll errors",
		},
		[]string{"source", "error_type"}, // "auth", "rate_limited", "network", "parse", "other"
	)

	PollLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_poll_last_success_timestamp",
			Help: "Unix timestamp of the last successful poll per source",
		},
		[]string{"source"},
	)

	// Client Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "client_queue_depth",
			Help: "Current number of plays waiting in each client queue",
		},
		[]string{"client"},
	)

	ScrobblesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_scrobbles_total",
			Help: "Total number of queued plays processed per client by outcome",
		},
		[]string{"client", "result"}, // "scrobbled", "duplicate", "timeframe", "dropped", "error"
	)

	ScrobbleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_scrobble_duration_seconds",
			Help:    "Duration of scrobble submissions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client"},
	)

	NowPlayingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_now_playing_total",
			Help: "Total number of now-playing updates sent per client",
		},
		[]string{"client"},
	)

	// Dead Letter Queue Metrics
	DeadLetterEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deadletter_entries",
			Help: "Current number of dead-lettered scrobbles per client",
		},
		[]string{"client"},
	)

	DeadLetterAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadletter_added_total",
			Help: "Total number of scrobbles moved to the dead letter queue",
		},
		[]string{"client"},
	)

	DeadLetterRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadletter_removed_total",
			Help: "Total number of scrobbles removed from the dead letter queue",
		},
		[]string{"client"},
	)

	DeadLetterRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadletter_retries_total",
			Help: "Total number of dead letter retry attempts by outcome",
		},
		[]string{"client", "outcome"}, // "success", "failure"
	)

	DeadLetterOldestAge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deadletter_oldest_entry_age_seconds",
			Help: "Age of the oldest dead letter entry per client in seconds",
		},
		[]string{"client"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the in-process bus",
		},
		[]string{"kind"},
	)

	// Notifier Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notices_total",
			Help: "Total number of outbound notification attempts by notifier and outcome",
		},
		[]string{"notifier", "outcome"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Webhook Ingest Metrics
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total number of webhook payloads received per source type",
		},
		[]string{"source_type"},
	)

	WebhooksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_rejected_total",
			Help: "Total number of webhook payloads rejected per source type",
		},
		[]string{"source_type", "reason"}, // "content_type", "parse", "unmatched"
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures per circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordPoll records the outcome of a single source poll cycle
func RecordPoll(source string, duration time.Duration, err error) {
	PollDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		errorType := "unknown"
		// Categorize error types
		errorMsg := err.Error()
		if len(errorMsg) > 0 {
			switch {
			case containsAny(errorMsg, "auth", "unauthorized", "token"):
				errorType = "auth"
			case containsAny(errorMsg, "rate limit", "too many requests"):
				errorType = "rate_limited"
			case containsAny(errorMsg, "connect", "timeout", "refused", "unreachable"):
				errorType = "network"
			case containsAny(errorMsg, "parse", "decode", "unmarshal"):
				errorType = "parse"
			default:
				errorType = "other"
			}
		}
		PollErrors.WithLabelValues(source, errorType).Inc()
	} else {
		// Update last success timestamp
		PollLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
	}
}

// RecordDiscovery records plays discovered during one poll or webhook delivery
func RecordDiscovery(source string, fresh, duplicates int) {
	if fresh > 0 {
		PlaysDiscovered.WithLabelValues(source).Add(float64(fresh))
	}
	if duplicates > 0 {
		DiscoveryDuplicates.WithLabelValues(source).Add(float64(duplicates))
	}
}

// RecordPlayDropped records a play dropped before ingestion
func RecordPlayDropped(source, reason string) {
	PlaysDropped.WithLabelValues(source, reason).Inc()
}

// RecordScrobble records the processing outcome for one queued play
func RecordScrobble(client, result string, duration time.Duration) {
	ScrobblesTotal.WithLabelValues(client, result).Inc()
	if result == "scrobbled" || result == "error" {
		ScrobbleDuration.WithLabelValues(client).Observe(duration.Seconds())
	}
}

// RecordNowPlaying records a now-playing update sent to an upstream service
func RecordNowPlaying(client string) {
	NowPlayingTotal.WithLabelValues(client).Inc()
}

// UpdateQueueDepth updates the queue depth gauge for a client
func UpdateQueueDepth(client string, depth int) {
	QueueDepth.WithLabelValues(client).Set(float64(depth))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordWebhook records a webhook delivery, rejected or accepted
func RecordWebhook(sourceType, rejectReason string) {
	WebhooksReceived.WithLabelValues(sourceType).Inc()
	if rejectReason != "" {
		WebhooksRejected.WithLabelValues(sourceType, rejectReason).Inc()
	}
}

// RecordDeadLetterEntry records a scrobble being added to the DLQ
func RecordDeadLetterEntry(client string) {
	DeadLetterAdded.WithLabelValues(client).Inc()
	DeadLetterEntries.WithLabelValues(client).Inc()
}

// RecordDeadLetterRemoval records a scrobble being removed from the DLQ
func RecordDeadLetterRemoval(client string) {
	DeadLetterRemoved.WithLabelValues(client).Inc()
	DeadLetterEntries.WithLabelValues(client).Dec()
}

// RecordDeadLetterRetry records a retry attempt and its outcome
func RecordDeadLetterRetry(client string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	DeadLetterRetries.WithLabelValues(client, outcome).Inc()
}

// UpdateDeadLetterGauges updates DLQ gauge metrics with current stats
func UpdateDeadLetterGauges(client string, totalEntries int, oldestEntryAge float64) {
	DeadLetterEntries.WithLabelValues(client).Set(float64(totalEntries))
	DeadLetterOldestAge.WithLabelValues(client).Set(oldestEntryAge)
}

// RecordEventPublished records an event published to the in-process bus
func RecordEventPublished(kind string) {
	EventsPublished.WithLabelValues(kind).Inc()
}

// containsAny reports whether s contains any of the given substrings
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, substr := range substrs {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
