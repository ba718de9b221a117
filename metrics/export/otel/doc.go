// Package otel provides OpenTelemetry metric exporter bindings for
// tenantauth counters and histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for
// each engine metric and Int64ObservableGauge per histogram bucket. A
// single callback reads [tenantauth.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
