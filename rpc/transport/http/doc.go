// Package http serves and fetches the metrics page of a node.
//
// MetricsServer answers GET /metrics with the prometheus text format of all
// metric sets of a node (transport, sessions and process metrics) and
// GET /health with "ok". In debug mode every request is logged with its
// status code and duration. FetchMetrics is the matching client used by the
// command line.
package http
