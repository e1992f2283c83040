// Package progress accumulates per-file outcomes for a run and renders them.
//
// Aggregator is the only place outcomes are counted. On a terminal it also
// drives a live go-pretty progress display; elsewhere it is silent and the
// caller prints RenderSummary at the end.
package progress
