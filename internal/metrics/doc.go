// Package metrics provides an observability framework for publish job metrics.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// all components use NoopRecorder which implements the Recorder interface with
// no-op methods that inline to nothing at compile time.
//
// # Architecture
//
// The metrics system has three components:
//
//  1. Recorder interface - Defines all metrics operations
//  2. NoopRecorder - Default implementation that does nothing (zero overhead)
//  3. PrometheusRecorder - Real implementation registered against a prometheus.Registry
//
// # Usage Pattern
//
// Components receive a Recorder through dependency injection:
//
//	type Orchestrator struct {
//	    recorder metrics.Recorder
//	}
//
// When metrics are enabled, the daemon constructs a PrometheusRecorder and
// serves the registry via HTTPHandler on /metrics; otherwise components keep
// the NoopRecorder default and no collection happens.
package metrics
