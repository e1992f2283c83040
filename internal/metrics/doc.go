// Package metrics exposes Prometheus instrumentation for conversion runs.
//
// A nil *Recorder is valid and records nothing, so callers that run without
// metrics do not need to branch.
package metrics
