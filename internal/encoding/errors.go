package encoding

import "errors"

var (
	// ErrEncoderFailed marks a non-zero encoder exit or a missing output.
	ErrEncoderFailed = errors.New("encoder failed")
	// ErrDiskFull marks encodes that ran out of space on the output volume.
	ErrDiskFull = errors.New("no space left on device")
	// ErrTimeout marks encodes that exceeded encoder.timeout_seconds.
	ErrTimeout = errors.New("encode timed out")
)
