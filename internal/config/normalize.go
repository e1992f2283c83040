package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeQuality()
	c.normalizeCategories()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("CONVOY_WATCH_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WatchDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("CONVOY_OUTPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		c.Paths.WatchDir = defaultWatchDir
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Backend = strings.ToLower(strings.TrimSpace(c.Encoder.Backend))
	if c.Encoder.Backend == "" {
		c.Encoder.Backend = defaultEncoderBackend
	}
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	c.Encoder.VideoCodec = strings.TrimSpace(c.Encoder.VideoCodec)
	if c.Encoder.VideoCodec == "" {
		c.Encoder.VideoCodec = defaultVideoCodec
	}
	c.Encoder.AudioCodec = strings.TrimSpace(c.Encoder.AudioCodec)
	if c.Encoder.AudioCodec == "" {
		c.Encoder.AudioCodec = defaultAudioCodec
	}
	c.Encoder.AudioBitrate = strings.TrimSpace(c.Encoder.AudioBitrate)
	if c.Encoder.AudioBitrate == "" {
		c.Encoder.AudioBitrate = defaultAudioBitrate
	}
	c.Encoder.OutputExtension = normalizeExtension(c.Encoder.OutputExtension)
	if c.Encoder.OutputExtension == "" {
		c.Encoder.OutputExtension = defaultOutputExtension
	}
	if c.Encoder.TimeoutSeconds < 0 {
		c.Encoder.TimeoutSeconds = 0
	}

	formats := make([]string, 0, len(c.Encoder.SupportedFormats))
	seen := make(map[string]struct{}, len(c.Encoder.SupportedFormats))
	for _, format := range c.Encoder.SupportedFormats {
		normalized := normalizeExtension(format)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	if len(formats) == 0 {
		formats = append(formats, defaultSupportedFormats...)
	}
	c.Encoder.SupportedFormats = formats
}

// normalizeQuality orders the preset ladder by height. When two presets
// share a height bracket the one declared last wins, so file values
// override repository defaults.
func (c *Config) normalizeQuality() {
	byHeight := make(map[int]QualityPreset, len(c.Quality.Presets))
	for _, preset := range c.Quality.Presets {
		preset.Name = strings.TrimSpace(preset.Name)
		preset.Preset = strings.TrimSpace(preset.Preset)
		if preset.MaxHeight <= 0 {
			continue
		}
		if preset.Name == "" {
			preset.Name = fmt.Sprintf("%dp", preset.MaxHeight)
		}
		if preset.Preset == "" {
			preset.Preset = "veryfast"
		}
		byHeight[preset.MaxHeight] = preset
	}
	if len(byHeight) == 0 {
		c.Quality.Presets = defaultQualityPresets()
		return
	}
	presets := make([]QualityPreset, 0, len(byHeight))
	for _, preset := range byHeight {
		presets = append(presets, preset)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].MaxHeight < presets[j].MaxHeight })
	c.Quality.Presets = presets
}

func (c *Config) normalizeCategories() {
	c.Categories.MoviesDir = strings.TrimSpace(c.Categories.MoviesDir)
	if c.Categories.MoviesDir == "" {
		c.Categories.MoviesDir = defaultMoviesDir
	}
	c.Categories.SeriesDir = strings.TrimSpace(c.Categories.SeriesDir)
	if c.Categories.SeriesDir == "" {
		c.Categories.SeriesDir = defaultSeriesDir
	}
	c.Categories.AnimeDir = strings.TrimSpace(c.Categories.AnimeDir)
	if c.Categories.AnimeDir == "" {
		c.Categories.AnimeDir = defaultAnimeDir
	}

	keywords := make([]string, 0, len(c.Categories.AnimeKeywords))
	for _, keyword := range c.Categories.AnimeKeywords {
		if normalized := strings.ToLower(strings.TrimSpace(keyword)); normalized != "" {
			keywords = append(keywords, normalized)
		}
	}
	c.Categories.AnimeKeywords = keywords

	patterns := make([]string, 0, len(c.Categories.SeriesPatterns))
	for _, pattern := range c.Categories.SeriesPatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	if len(patterns) == 0 {
		patterns = append(patterns, defaultSeriesPatterns...)
	}
	c.Categories.SeriesPatterns = patterns
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CONVOY_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
