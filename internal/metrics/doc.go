// Package metrics provides build and rebuild-loop metrics for requireconcat.
//
// Components receive a Recorder through injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	svc := build.NewBuildService()                // NoopRecorder
//	svc = svc.WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// When metrics.listen_addr is configured, HTTPHandler serves the registry.
package metrics
