// Package prometheus renders tenantauth metrics for Prometheus.
//
// [NewPrometheusExporter] accepts a [tenantauth.Engine] and exposes an
// [http.Handler] that renders all counters and histograms in Prometheus
// text exposition format. Counter names are prefixed tenantauth_*_total;
// the single histogram is tenantauth_authorize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount
//     the Handler.
//   - Mutate engine state.
package prometheus
