// Package metrics exports per-run pipeline counters to a Prometheus
// Pushgateway. Each CLI invocation builds its own registry so a push only
// carries that run's numbers.
package metrics
