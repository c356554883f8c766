// Package otel provides OpenTelemetry metric exporter bindings for kaijuauth
// counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter per kaijuauth metric.
// A single callback reads [kaijuauth.Service.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate service state.
package otel
