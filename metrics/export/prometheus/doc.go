// Package prometheus exports goSession client metrics through
// client_golang.
//
// [PrometheusExporter] is a collector: register it with any registry, or
// mount [PrometheusExporter.Handler] which uses a private one. Counter names
// are prefixed gosession_*_total; the single histogram is
// gosession_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry.
//   - Mutate client state.
package prometheus
