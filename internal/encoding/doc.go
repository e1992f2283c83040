// Package encoding drives the external encoder for one input file.
//
// Two backends implement Invoker: FFmpeg runs the ffmpeg binary with an x265
// argument set chosen from the configured quality ladder, and Drapto encodes
// through the drapto library. Both write to the path they are given; the
// caller is expected to pass a partial path (see PartialPath) and promote it
// with Finalize only after verification.
package encoding
