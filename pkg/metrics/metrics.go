// Package metrics exposes the Prometheus registry used by the calendar client.
// All metrics are defined in their respective packages (client, pagination,
// retrieval, dedup, ratelimit, session) and registered via promauto.
//
// This package serves them over HTTP and documents what exists.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the calendar client.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Names lists every metric family the client registers.
var Names = []string{
	// pkg/client
	"calendar_requests_total",
	"calendar_request_duration_seconds",
	"calendar_errors_total",
	"calendar_retries_total",
	"calendar_retry_backoff_seconds",
	"calendar_retry_exhausted_total",

	// pkg/ratelimit
	"calendar_rate_limit_waits_total",
	"calendar_rate_limit_throttles_total",

	// pkg/pagination
	"calendar_pages_per_chunk",
	"calendar_upstream_cap_suspected_total",
	"calendar_page_stops_total",

	// pkg/dedup
	"calendar_events_accepted_total",
	"calendar_events_duplicate_total",

	// pkg/retrieval
	"calendar_chunks_total",
	"calendar_chunk_failures_total",
	"calendar_events_extracted_total",
	"calendar_retrievals_total",
	"calendar_retrieval_duration_seconds",

	// pkg/session
	"calendar_session_cache_hits_total",
	"calendar_session_cache_misses_total",
	"calendar_session_bootstraps_total",
	"calendar_session_store_errors_total",
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - calendar_requests_total{status} (Counter): Upstream requests by HTTP status
//   - calendar_request_duration_seconds (Histogram): Upstream request duration
//   - calendar_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, parse)
//
// Retry Metrics (pkg/client):
//   - calendar_retries_total{error_class} (Counter): Retry attempts by error class
//   - calendar_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - calendar_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - calendar_rate_limit_waits_total (Counter): Requests delayed by the pacer or a cooldown
//   - calendar_rate_limit_throttles_total (Counter): 429 responses recorded
//
// Pagination Metrics (pkg/pagination):
//   - calendar_pages_per_chunk (Histogram): Pages requested per chunk
//   - calendar_upstream_cap_suspected_total (Counter): First pages at or above the upstream cap
//   - calendar_page_stops_total{reason} (Counter): Chunk pagination stops by reason
//
// Dedup Metrics (pkg/dedup):
//   - calendar_events_accepted_total (Counter): Events accepted after deduplication
//   - calendar_events_duplicate_total (Counter): Events dropped as duplicates
//
// Retrieval Metrics (pkg/retrieval):
//   - calendar_chunks_total{outcome} (Counter): Chunks by outcome (complete, incomplete, failed)
//   - calendar_chunk_failures_total (Counter): Chunks failed after all retries
//   - calendar_events_extracted_total (Counter): Events extracted before cross-chunk dedup
//   - calendar_retrievals_total{status} (Counter): Retrievals by status
//   - calendar_retrieval_duration_seconds (Histogram): Retrieval duration
//
// Session Metrics (pkg/session):
//   - calendar_session_cache_hits_total (Counter)
//   - calendar_session_cache_misses_total (Counter)
//   - calendar_session_bootstraps_total{result} (Counter)
//   - calendar_session_store_errors_total{operation} (Counter)
//
// Example Prometheus Queries:
//
//   # Chunk failure rate
//   rate(calendar_chunk_failures_total[1h]) / sum(rate(calendar_chunks_total[1h]))
//
//   # Chunks hitting the upstream cap (narrow days_per_chunk if non-zero)
//   increase(calendar_upstream_cap_suspected_total[1d])
//
//   # Duplicate ratio
//   rate(calendar_events_duplicate_total[1h]) / rate(calendar_events_extracted_total[1h])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(calendar_request_duration_seconds_bucket[5m]))
