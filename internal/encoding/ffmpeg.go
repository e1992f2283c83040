package encoding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"convoy/internal/config"
	"convoy/internal/fileutil"
	"convoy/internal/logging"
	"convoy/internal/probe"
)

var commandContext = exec.CommandContext

var reDiskFull = regexp.MustCompile(`(?i)No space left on device|Disk quota exceeded`)

// FFmpeg encodes through the ffmpeg binary.
type FFmpeg struct {
	binary       string
	videoCodec   string
	audioCodec   string
	audioBitrate string
	presets      []config.QualityPreset
	timeout      time.Duration
	progress     ProgressFunc
	logger       *slog.Logger
}

// NewFFmpeg constructs the ffmpeg backend. A zero timeout leaves encodes unbounded.
func NewFFmpeg(enc config.Encoder, presets []config.QualityPreset, timeout time.Duration, opts ...Option) *FFmpeg {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	binary := strings.TrimSpace(enc.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary:       binary,
		videoCodec:   enc.VideoCodec,
		audioCodec:   enc.AudioCodec,
		audioBitrate: enc.AudioBitrate,
		presets:      presets,
		timeout:      timeout,
		progress:     o.progress,
		logger:       logging.NewComponentLogger(o.logger, "ffmpeg"),
	}
}

// BuildArgs returns the ffmpeg argument list (without the binary) for one encode.
func (f *FFmpeg) BuildArgs(input, output string, meta probe.MediaMetadata) []string {
	preset := SelectPreset(meta.Height, f.presets)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", input,
		"-map", "0:v:0", "-map", "0:a?",
		"-c:v", f.videoCodec,
		"-preset", preset.Preset,
		"-crf", strconv.Itoa(preset.CRF),
	}
	if meta.Height > preset.MaxHeight {
		args = append(args, "-vf", "scale=-2:"+strconv.Itoa(preset.MaxHeight))
	}
	if f.videoCodec == "libx265" {
		args = append(args, "-tag:v", "hvc1", "-x265-params", "log-level=error")
	}
	args = append(args,
		"-c:a", f.audioCodec,
		"-b:a", f.audioBitrate,
		"-progress", "pipe:1", "-nostats",
		"-loglevel", "error",
		output,
	)
	return args
}

// Convert runs ffmpeg and classifies failures as ErrDiskFull, ErrTimeout or
// ErrEncoderFailed. Cancellation of ctx kills the process and is returned
// unwrapped from those sentinels.
func (f *FFmpeg) Convert(ctx context.Context, input, output string, meta probe.MediaMetadata) error {
	runCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := f.BuildArgs(input, output, meta)
	preset := SelectPreset(meta.Height, f.presets)
	f.logger.Info("ffmpeg encode started",
		logging.String(logging.FieldPath, input),
		logging.String(logging.FieldOutputPath, output),
		logging.String("quality", meta.Quality),
		logging.String("preset", preset.Name),
		logging.Int("crf", preset.CRF),
	)
	f.logger.Debug("ffmpeg command", logging.String("command", f.binary+" "+strings.Join(args, " ")))

	cmd := commandContext(runCtx, f.binary, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	stderr := &tailBuffer{limit: 8 << 10}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ErrEncoderFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrEncoderFailed, f.binary, err)
	}

	f.consumeProgress(stdout, input, meta.DurationSeconds)
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("encode cancelled: %w", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, f.timeout)
	case waitErr != nil:
		tail := stderr.String()
		if reDiskFull.MatchString(tail) {
			return fmt.Errorf("%w: %s", ErrDiskFull, lastLine(tail))
		}
		if tail != "" {
			return fmt.Errorf("%w: %v: %s", ErrEncoderFailed, waitErr, lastLine(tail))
		}
		return fmt.Errorf("%w: %v", ErrEncoderFailed, waitErr)
	}

	if !fileutil.Exists(output) {
		return fmt.Errorf("%w: no output written to %s", ErrEncoderFailed, output)
	}
	if f.progress != nil {
		f.progress(input, 100)
	}
	return nil
}

// consumeProgress reads "-progress pipe:1" key=value blocks until EOF.
func (f *FFmpeg) consumeProgress(r io.Reader, input string, duration float64) {
	sampler := logging.NewProgressSampler(10)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "out_time_us" || duration <= 0 {
			continue
		}
		micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || micros < 0 {
			continue
		}
		percent := float64(micros) / 1e6 / duration * 100
		if percent > 100 {
			percent = 100
		}
		if f.progress != nil {
			f.progress(input, percent)
		}
		if sampler.ShouldLog(percent) {
			f.logger.Debug("ffmpeg progress",
				logging.String(logging.FieldPath, input),
				logging.Float64("progress_percent", float64(int(percent*10))/10),
			)
		}
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
