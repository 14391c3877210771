// Package monitoring provides Prometheus metrics for the demo service and
// the export pipeline's self-telemetry.
//
// The pipeline publishes its own health here rather than through spans:
// dropped and exported span counters, transmission failures, queue depth,
// and flush latency. A snapshot of the headline numbers is kept for the
// JSON status endpoint; everything else is scraped from /metrics.
package monitoring
