// Package probe turns ffprobe output into the MediaMetadata value the
// conversion pipeline reasons about, and classifies input files that cannot
// be converted.
package probe
