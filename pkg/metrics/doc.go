/*
Package metrics exposes the memory engine's Prometheus instrumentation:
counters and histograms for episode completion, synchronizer conflicts,
query-cache hit/miss/eviction, capacity evictions, extraction-queue
throughput, circuit-breaker state, and retrieval latency, plus a periodic
Collector for gauges sampled from engine state and a small HealthChecker
backing the HTTP health endpoint.
*/
package metrics
