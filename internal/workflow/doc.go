// Package workflow is the conversion orchestrator.
//
// An Orchestrator drives files through a single sequential pipeline:
//
//	claim -> stability -> validate -> resume policy -> resource gate ->
//	bounded retry of (encode to partial -> verify -> finalize) -> record
//
// RunBatch processes a fixed list of inputs once. Watch polls a directory,
// feeding newly discovered files through the same pipeline until stopped.
// A Registry keeps every file to at most one terminal outcome per run; the
// decision to skip or redo work from an earlier run is made from the files on
// disk by ResumePolicy.
//
// Both drivers take two cancellation signals. Closing stop lets the current
// file finish and then returns; cancelling ctx aborts the in-flight encode.
package workflow
