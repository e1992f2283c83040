package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"convoy/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "convoy", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if !filepath.IsAbs(cfg.Paths.WatchDir) || !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Fatalf("expected absolute watch/output dirs, got %q and %q", cfg.Paths.WatchDir, cfg.Paths.OutputDir)
	}
	if cfg.HistoryDBPath() != filepath.Join(tempHome, ".local", "share", "convoy", "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryDBPath())
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Fatalf("expected 2 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Resume.DurationTolerance != config.DurationTolerance {
		t.Fatalf("unexpected duration tolerance: %v", cfg.Resume.DurationTolerance)
	}
	if cfg.Encoder.Backend != "ffmpeg" {
		t.Fatalf("unexpected backend: %q", cfg.Encoder.Backend)
	}
	if len(cfg.Quality.Presets) != 2 || cfg.Quality.Presets[0].MaxHeight != 720 {
		t.Fatalf("unexpected preset ladder: %+v", cfg.Quality.Presets)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "convoy.toml")
	content := `
[paths]
watch_dir = "~/drop"
output_dir = "~/encoded"

[retry]
max_attempts = 4
delay_seconds = 0

[encoder]
backend = "FFmpeg"
output_extension = "mp4"
supported_formats = ["MKV", ".mp4", "mkv"]

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.WatchDir != filepath.Join(tempHome, "drop") {
		t.Fatalf("unexpected watch dir: %q", cfg.Paths.WatchDir)
	}
	if cfg.Retry.MaxAttempts != 4 || cfg.Retry.DelaySeconds != 0 {
		t.Fatalf("unexpected retry config: %+v", cfg.Retry)
	}
	if cfg.Encoder.Backend != "ffmpeg" {
		t.Fatalf("expected lowercase backend, got %q", cfg.Encoder.Backend)
	}
	if cfg.Encoder.OutputExtension != ".mp4" {
		t.Fatalf("expected dotted extension, got %q", cfg.Encoder.OutputExtension)
	}
	if got := strings.Join(cfg.Encoder.SupportedFormats, ","); got != ".mkv,.mp4" {
		t.Fatalf("unexpected supported formats: %q", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadHonoursEnvironmentFallbacks(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	watch := filepath.Join(tempHome, "incoming")
	t.Setenv("CONVOY_WATCH_DIR", watch)
	t.Setenv("CONVOY_NTFY_TOPIC", "https://ntfy.example/convoy")

	cfg, _, _, err := config.Load(filepath.Join(tempHome, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.WatchDir != watch {
		t.Fatalf("expected watch dir from env, got %q", cfg.Paths.WatchDir)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/convoy" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"retry", func(c *config.Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"backend", func(c *config.Config) { c.Encoder.Backend = "handbrake" }, "encoder.backend"},
		{"cpu", func(c *config.Config) { c.Resources.MaxCPUPercent = 150 }, "resources.max_cpu_percent"},
		{"same dirs", func(c *config.Config) { c.Paths.OutputDir = c.Paths.WatchDir }, "must differ"},
		{"category", func(c *config.Config) { c.Categories.SeriesDir = "../tv" }, "categories.series_dir"},
		{"pattern", func(c *config.Config) { c.Categories.SeriesPatterns = []string{"("} }, "series_patterns"},
		{"tolerance", func(c *config.Config) { c.Resume.DurationTolerance = 0 }, "resume.duration_tolerance"},
		{"verify looser than resume", func(c *config.Config) { c.Verify.DurationTolerance = 3 }, "must not exceed resume.duration_tolerance"},
		{"drapto extension", func(c *config.Config) {
			c.Encoder.Backend = "drapto"
			c.Encoder.OutputExtension = ".mp4"
		}, "must be .mkv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateSkipsDisabledResourceGate(t *testing.T) {
	cfg := config.Default()
	cfg.Resources.Enabled = false
	cfg.Resources.MaxCPUPercent = -1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled resource gate to skip checks, got %v", err)
	}
}

func TestCreateSampleLoadsCleanly(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid toml: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Quality.Presets) != 2 {
		t.Fatalf("expected sample presets to collapse onto the default ladder, got %+v", cfg.Quality.Presets)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "convoy", "output") {
		t.Fatalf("unexpected output dir from sample: %q", cfg.Paths.OutputDir)
	}
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "in")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WatchDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
