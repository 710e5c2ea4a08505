// Package metrics provides observability hooks for the companion engine.
//
// Components receive a Recorder through their options and default to NoopRecorder, so no
// call site needs a nil check. The run command swaps in a PrometheusRecorder and serves it
// with HTTPHandler when a metrics listen address is configured:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
