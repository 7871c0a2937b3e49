// Package prometheus exports authflow engine metrics as a Prometheus
// collector.
//
// [NewPrometheusExporter] wraps an [authflow.Engine]. Register the exporter
// with a registry of your choice, or mount [PrometheusExporter.Handler].
// Counters are named authflow_*_total; the one histogram is
// authflow_step_latency_seconds.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry.
//   - Mutate engine state.
package prometheus
