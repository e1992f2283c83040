package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir  string `toml:"watch_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Watch contains timing for the folder-watch loop.
type Watch struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Stability controls the "has this file finished copying" check.
type Stability struct {
	WaitSeconds  int  `toml:"wait_seconds"`
	GraceSeconds int  `toml:"grace_seconds"`
	LockProbe    bool `toml:"lock_probe"`
}

// Resume controls how pre-existing output is judged.
type Resume struct {
	// DurationTolerance is the maximum input/output duration delta, in seconds,
	// for an existing output to count as a finished conversion.
	DurationTolerance float64 `toml:"duration_tolerance"`
}

// Retry bounds the per-file conversion attempts.
type Retry struct {
	MaxAttempts  int `toml:"max_attempts"`
	DelaySeconds int `toml:"delay_seconds"`
}

// Resources configures load-based admission of new encodes.
type Resources struct {
	Enabled               bool    `toml:"enabled"`
	MaxCPUPercent         float64 `toml:"max_cpu_percent"`
	MinAvailableMemoryGiB float64 `toml:"min_available_memory_gib"`
	PollIntervalSeconds   int     `toml:"poll_interval_seconds"`
	WaitTimeoutSeconds    int     `toml:"wait_timeout_seconds"`
	SampleWindowMillis    int     `toml:"sample_window_millis"`
}

// Encoder configures the external encoding engine.
type Encoder struct {
	Backend          string   `toml:"backend"`
	FFmpegBinary     string   `toml:"ffmpeg_binary"`
	FFprobeBinary    string   `toml:"ffprobe_binary"`
	VideoCodec       string   `toml:"video_codec"`
	AudioCodec       string   `toml:"audio_codec"`
	AudioBitrate     string   `toml:"audio_bitrate"`
	OutputExtension  string   `toml:"output_extension"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	KeepIncomplete   bool     `toml:"keep_incomplete"`
	SkipHEVCSources  bool     `toml:"skip_hevc_sources"`
	SupportedFormats []string `toml:"supported_formats"`
}

// QualityPreset maps a source height bracket to encoder quality settings.
type QualityPreset struct {
	Name      string `toml:"name"`
	MaxHeight int    `toml:"max_height"`
	CRF       int    `toml:"crf"`
	Preset    string `toml:"preset"`
}

// Quality holds the ordered preset ladder.
type Quality struct {
	Presets []QualityPreset `toml:"presets"`
}

// Categories configures output routing.
type Categories struct {
	MoviesDir      string   `toml:"movies_dir"`
	SeriesDir      string   `toml:"series_dir"`
	AnimeDir       string   `toml:"anime_dir"`
	AnimeKeywords  []string `toml:"anime_keywords"`
	SeriesPatterns []string `toml:"series_patterns"`
}

// Verify configures post-encode output validation.
type Verify struct {
	Enabled           bool    `toml:"enabled"`
	DurationTolerance float64 `toml:"duration_tolerance"`
	MinSizeRatio      float64 `toml:"min_size_ratio"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Failures       bool   `toml:"failures"`
	BatchComplete  bool   `toml:"batch_complete"`
	WatchStopped   bool   `toml:"watch_stopped"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for convoy.
//
// Configuration sections by subsystem:
//   - Paths: watch, output, log and state directories
//   - Watch: folder polling interval
//   - Stability: copy-finished detection
//   - Resume: existing-output validation tolerance
//   - Retry: per-file attempt bound and delay
//   - Resources: CPU/memory admission gate
//   - Encoder: backend, binaries, codecs and input formats
//   - Quality: CRF/preset ladder by source height
//   - Categories: output folder routing
//   - Verify: post-encode checks
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus listener
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Watch         Watch         `toml:"watch"`
	Stability     Stability     `toml:"stability"`
	Resume        Resume        `toml:"resume"`
	Retry         Retry         `toml:"retry"`
	Resources     Resources     `toml:"resources"`
	Encoder       Encoder       `toml:"encoder"`
	Quality       Quality       `toml:"quality"`
	Categories    Categories    `toml:"categories"`
	Verify        Verify        `toml:"verify"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/convoy/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("convoy.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories convoy writes to. The watch
// directory is created too, matching what an operator expects when pointing
// the watcher at a fresh drop folder.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.WatchDir) != "" {
		if err := os.MkdirAll(c.Paths.WatchDir, 0o755); err != nil {
			return fmt.Errorf("create watch directory %q: %w", c.Paths.WatchDir, err)
		}
	}
	return nil
}

// HistoryDBPath returns the location of the conversion history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// WatchInterval returns the folder polling interval.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalSeconds) * time.Second
}

// StabilityWait returns the delay between the two size samples.
func (c *Config) StabilityWait() time.Duration {
	return time.Duration(c.Stability.WaitSeconds) * time.Second
}

// StabilityGrace returns the extra delay applied when a file is still growing.
func (c *Config) StabilityGrace() time.Duration {
	return time.Duration(c.Stability.GraceSeconds) * time.Second
}

// RetryDelay returns the pause between failed conversion attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelaySeconds) * time.Second
}

// EncoderTimeout returns the encoder timeout, or zero when unbounded.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Encoder.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
