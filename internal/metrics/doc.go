// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements comprehensive application instrumentation using the Prometheus
client library, exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - Source polling latency and play discovery rates
  - Scrobble client queue depth and delivery outcomes
  - Dead letter queue depth and retry results
  - HTTP request latency and throughput
  - Circuit breaker state transitions
  - WebSocket connection counts

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:9078/metrics

# Available Metrics

Source Metrics:
  - source_plays_discovered_total: New plays discovered (counter)
    Labels: source
  - source_discovery_duplicates_total: Plays discarded as duplicates (counter)
    Labels: source
  - source_plays_dropped_total: Plays dropped before ingestion (counter)
    Labels: source, reason (invalid, transform, threshold, backlog)
  - source_poll_duration_seconds: Poll request latency (histogram)
    Labels: source
  - source_poll_errors_total: Failed polls (counter)
    Labels: source, error_type (auth, rate_limited, network, parse, other)
  - source_poll_last_success_timestamp: Unix timestamp of last successful poll (gauge)
    Labels: source

Client Metrics:
  - client_queue_depth: Plays waiting in the scrobble queue (gauge)
    Labels: client
  - client_scrobbles_total: Queued plays processed by outcome (counter)
    Labels: client, result (scrobbled, duplicate, timeframe, error)
  - client_scrobble_duration_seconds: Scrobble submission latency (histogram)
    Labels: client
  - client_now_playing_total: Now-playing updates sent upstream (counter)
    Labels: client

Dead Letter Queue Metrics:
  - deadletter_entries: Current dead letter count (gauge)
    Labels: client
  - deadletter_added_total / deadletter_removed_total: DLQ churn (counters)
    Labels: client
  - deadletter_retries_total: Retry attempts by outcome (counter)
    Labels: client, outcome (success, failure)
  - deadletter_oldest_entry_age_seconds: Age of the oldest entry (gauge)
    Labels: client

HTTP Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Active requests (gauge)
  - api_rate_limit_hits_total: Requests rejected by the rate limiter (counter)
    Labels: endpoint
  - webhooks_received_total / webhooks_rejected_total: Webhook ingest (counters)
    Labels: source_type (plus reason on rejections)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests by result (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_consecutive_failures: Consecutive failure count (gauge)
    Labels: name
  - circuit_breaker_transitions_total: State transitions (counter)
    Labels: name, from, to

WebSocket Metrics:
  - websocket_connections: Active connections (gauge)
  - websocket_messages_sent_total: Messages sent (counter)
  - websocket_messages_received_total: Messages received (counter)
  - websocket_errors_total: Errors by type (counter)

# Usage Example

Recording poll outcomes inside a source:

	start := time.Now()
	plays, err := adapter.RecentlyPlayed(ctx, limit)
	metrics.RecordPoll(s.Name(), time.Since(start), err)

Recording scrobble outcomes inside a client worker:

	start := time.Now()
	err := c.adapter.Scrobble(ctx, queued.Play)
	if err != nil {
	    metrics.RecordScrobble(c.Name(), "error", time.Since(start))
	} else {
	    metrics.RecordScrobble(c.Name(), "scrobbled", time.Since(start))
	}

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'audiographus'
	    static_configs:
	      - targets: ['localhost:9078']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

Example PromQL queries:

	# Scrobbles per minute by client
	rate(client_scrobbles_total{result="scrobbled"}[1m]) * 60

	# Poll p95 latency
	histogram_quantile(0.95, rate(source_poll_duration_seconds_bucket[5m]))

	# Time since last successful poll
	time() - source_poll_last_success_timestamp

	# Dead letter backlog across all clients
	sum(deadletter_entries)

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:

  - Source and client labels use configured names (a handful per deployment)
  - Endpoint labels are route patterns, never raw paths
  - Error types are classified into a fixed set of buckets
  - Track identifiers never appear as labels

# Alerting Rules

Example Prometheus alerting rules:

	groups:
	  - name: audiographus
	    rules:
	      - alert: PollsFailing
	        expr: |
	          time() - source_poll_last_success_timestamp > 900
	        for: 5m
	        annotations:
	          summary: "No successful poll from {{ $labels.source }} in 15m"

	      - alert: DeadLetterBacklog
	        expr: deadletter_entries > 50
	        for: 10m
	        annotations:
	          summary: "{{ $labels.client }} has {{ $value }} dead letters"

	      - alert: CircuitBreakerOpen
	        expr: circuit_breaker_state == 2
	        for: 2m
	        annotations:
	          summary: "Circuit breaker open for {{ $labels.name }}"

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/source: Poll and discovery metrics recording
  - internal/client: Scrobble delivery metrics recording
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
