// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns the parsed Result; Parse decodes a
// payload captured elsewhere. Helper methods on Result give stream lookups
// and tolerant numeric parsing of the string-typed ffprobe fields.
package ffprobe
