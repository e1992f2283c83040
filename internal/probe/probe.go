package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"convoy/internal/media/ffprobe"
)

var (
	// ErrUnsupportedFormat marks inputs whose extension is not a configured video format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNotFound marks inputs that no longer exist.
	ErrNotFound = errors.New("file not found")
	// ErrNoVideo marks inputs without a video stream.
	ErrNoVideo = errors.New("no video stream")
	// ErrProbe marks inputs ffprobe could not read.
	ErrProbe = errors.New("probe failed")
)

// MediaMetadata is the subset of stream and container facts used by the
// pipeline. DurationSeconds is never negative.
type MediaMetadata struct {
	DurationSeconds float64
	Width           int
	Height          int
	HasVideo        bool
	HasAudio        bool
	VideoCodec      string
	AudioCodec      string
	Container       string
	SizeBytes       int64
	Quality         string
}

// IsHEVC reports whether the primary video stream is already H.265.
func (m MediaMetadata) IsHEVC() bool {
	switch strings.ToLower(m.VideoCodec) {
	case "hevc", "h265", "x265":
		return true
	}
	return false
}

// IsLowQuality reports sources below 720 lines.
func (m MediaMetadata) IsLowQuality() bool {
	return m.HasVideo && m.Height > 0 && m.Height < 720
}

// Prober reads media metadata for a path.
type Prober interface {
	Probe(ctx context.Context, path string) (MediaMetadata, error)
}

// FFprobe is the Prober backed by the ffprobe binary.
type FFprobe struct {
	Binary string
}

// NewFFprobe returns a prober that runs binary (defaults to "ffprobe").
func NewFFprobe(binary string) *FFprobe {
	return &FFprobe{Binary: binary}
}

// Probe inspects path. A missing file yields ErrNotFound; any ffprobe failure
// yields ErrProbe.
func (p *FFprobe) Probe(ctx context.Context, path string) (MediaMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return MediaMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return MediaMetadata{}, fmt.Errorf("%w: stat %s: %v", ErrProbe, path, err)
	}
	if info.IsDir() {
		return MediaMetadata{}, fmt.Errorf("%w: %s is a directory", ErrProbe, path)
	}

	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return MediaMetadata{}, fmt.Errorf("%w: %v", ErrProbe, err)
	}
	meta := FromResult(result)
	if meta.SizeBytes == 0 {
		meta.SizeBytes = info.Size()
	}
	return meta, nil
}

// FromResult converts a parsed ffprobe payload into MediaMetadata.
func FromResult(result ffprobe.Result) MediaMetadata {
	meta := MediaMetadata{
		DurationSeconds: result.DurationSeconds(),
		SizeBytes:       result.SizeBytes(),
		Container:       strings.TrimSpace(result.Format.FormatName),
	}
	if meta.DurationSeconds < 0 {
		meta.DurationSeconds = 0
	}
	if video, ok := result.FirstStream("video"); ok {
		meta.HasVideo = true
		meta.VideoCodec = strings.ToLower(video.CodecName)
		meta.Width = video.Width
		meta.Height = video.Height
	}
	if audio, ok := result.FirstStream("audio"); ok {
		meta.HasAudio = true
		meta.AudioCodec = strings.ToLower(audio.CodecName)
	}
	meta.Quality = QualityLabel(meta.Height)
	return meta
}

// QualityLabel names the resolution bracket for a frame height.
func QualityLabel(height int) string {
	switch {
	case height <= 0:
		return "unknown"
	case height >= 2160:
		return "2160p"
	case height >= 1440:
		return "1440p"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	default:
		return "SD"
	}
}

// CheckFormat returns ErrUnsupportedFormat when path's extension is not one
// of formats. Formats are lower-case and dotted.
func CheckFormat(path string, formats []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range formats {
		if ext != "" && ext == candidate {
			return nil
		}
	}
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// Validate checks the probed metadata for a convertible input.
func Validate(meta MediaMetadata) error {
	if !meta.HasVideo {
		return ErrNoVideo
	}
	return nil
}
