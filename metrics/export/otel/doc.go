// Package otel binds goSession client metrics to an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// MetricsSnapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate client state.
package otel
