/*
Package monitoring provides metrics collection for script sessions.

# Overview

This package implements Prometheus-based metrics for domsim, tracking
session lifecycle, script evaluations and querySelector calls. Each
Metrics value owns its registry, so several hosts (or tests) in one
process never collide on collector registration.

# Usage

	metrics := monitoring.NewMetrics("domsim")

	timer := monitoring.NewTimer(metrics)
	// ... evaluate script ...
	timer.Stop("ok")

	// Metrics satisfies query.Recorder
	bridge := query.New(handle, query.WithRecorder(metrics))

All recording methods are safe on a nil *Metrics, which disables collection.
*/
package monitoring
