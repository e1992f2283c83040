package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateResources(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateCategories(); err != nil {
		return err
	}
	if err := c.validateVerify(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.WatchDir != "" && filepath.Clean(c.Paths.WatchDir) == filepath.Clean(c.Paths.OutputDir) {
		return errors.New("paths.output_dir must differ from paths.watch_dir")
	}
	return nil
}

func (c *Config) validateTiming() error {
	if err := ensurePositiveMap(map[string]int{
		"watch.interval_seconds":        c.Watch.IntervalSeconds,
		"retry.max_attempts":            c.Retry.MaxAttempts,
		"stability.wait_seconds":        c.Stability.WaitSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Stability.GraceSeconds < 0 {
		return errors.New("stability.grace_seconds must be >= 0")
	}
	if c.Retry.DelaySeconds < 0 {
		return errors.New("retry.delay_seconds must be >= 0")
	}
	if c.Resume.DurationTolerance <= 0 {
		return errors.New("resume.duration_tolerance must be positive")
	}
	return nil
}

func (c *Config) validateResources() error {
	if !c.Resources.Enabled {
		return nil
	}
	if c.Resources.MaxCPUPercent <= 0 || c.Resources.MaxCPUPercent > 100 {
		return errors.New("resources.max_cpu_percent must be between 0 and 100")
	}
	if c.Resources.MinAvailableMemoryGiB < 0 {
		return errors.New("resources.min_available_memory_gib must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"resources.poll_interval_seconds": c.Resources.PollIntervalSeconds,
		"resources.wait_timeout_seconds":  c.Resources.WaitTimeoutSeconds,
		"resources.sample_window_millis":  c.Resources.SampleWindowMillis,
	})
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.Backend {
	case "ffmpeg", "drapto":
	default:
		return fmt.Errorf("encoder.backend: unsupported value %q (expected ffmpeg or drapto)", c.Encoder.Backend)
	}
	if c.Encoder.Backend == "drapto" && c.Encoder.OutputExtension != ".mkv" {
		return errors.New("encoder.output_extension must be .mkv when encoder.backend is drapto")
	}
	for _, preset := range c.Quality.Presets {
		if preset.CRF < 0 || preset.CRF > 51 {
			return fmt.Errorf("quality preset %q: crf must be between 0 and 51", preset.Name)
		}
	}
	return nil
}

func (c *Config) validateCategories() error {
	for _, dir := range []struct{ key, value string }{
		{"categories.movies_dir", c.Categories.MoviesDir},
		{"categories.series_dir", c.Categories.SeriesDir},
		{"categories.anime_dir", c.Categories.AnimeDir},
	} {
		if filepath.IsAbs(dir.value) || strings.Contains(dir.value, "..") {
			return fmt.Errorf("%s must be a relative folder name", dir.key)
		}
	}
	for _, pattern := range c.Categories.SeriesPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("categories.series_patterns: %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateVerify() error {
	if !c.Verify.Enabled {
		return nil
	}
	if c.Verify.DurationTolerance <= 0 {
		return errors.New("verify.duration_tolerance must be positive")
	}
	if c.Verify.DurationTolerance > c.Resume.DurationTolerance {
		return errors.New("verify.duration_tolerance must not exceed resume.duration_tolerance")
	}
	if c.Verify.MinSizeRatio < 0 || c.Verify.MinSizeRatio >= 1 {
		return errors.New("verify.min_size_ratio must be between 0 and 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
