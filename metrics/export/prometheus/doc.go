// Package prometheus renders gridauth engine metrics in Prometheus text
// exposition format without depending on the Prometheus client library.
//
// [NewPrometheusExporter] reads engine snapshots on demand; [Handler] serves
// them over HTTP.
//
// # What this package must NOT do
//
//   - Hold engine state between scrapes.
//   - Mutate engine state.
package prometheus
