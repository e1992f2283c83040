package config

const (
	defaultWatchDir                 = "input"
	defaultOutputDir                = "output"
	defaultLogDir                   = "~/.local/share/convoy/logs"
	defaultStateDir                 = "~/.local/share/convoy"
	defaultWatchIntervalSeconds     = 5
	defaultStabilityWaitSeconds     = 3
	defaultStabilityGraceSeconds    = 5
	defaultRetryMaxAttempts         = 2
	defaultRetryDelaySeconds        = 2
	defaultMaxCPUPercent            = 80
	defaultMinAvailableMemoryGiB    = 2
	defaultResourcePollSeconds      = 10
	defaultResourceWaitSeconds      = 300
	defaultResourceSampleMillis     = 1000
	defaultEncoderBackend           = "ffmpeg"
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
	defaultVideoCodec               = "libx265"
	defaultAudioCodec               = "aac"
	defaultAudioBitrate             = "192k"
	defaultOutputExtension          = ".mkv"
	defaultMoviesDir                = "movies"
	defaultSeriesDir                = "series"
	defaultAnimeDir                 = "anime"
	defaultVerifyMinSizeRatio       = 0.01
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
	defaultDurationToleranceSeconds = 2.0
)

// DurationTolerance is the default maximum input/output duration delta, in
// seconds, for which an existing output is considered a finished conversion.
// It absorbs container and keyframe rounding.
const DurationTolerance = defaultDurationToleranceSeconds

var defaultSupportedFormats = []string{".mp4", ".mkv", ".avi", ".mov", ".flv", ".wmv", ".m4v", ".webm"}

var defaultAnimeKeywords = []string{"anime", "انیمه", "ova", "oad"}

var defaultSeriesPatterns = []string{
	`[Ss](\d{1,2})[Ee](\d{1,2})`,
	`(\d{1,2})[xX](\d{1,2})`,
	`[Ss]eason[\s_]?(\d{1,2})[\s_]?[Ee]pisode[\s_]?(\d{1,2})`,
}

func defaultQualityPresets() []QualityPreset {
	return []QualityPreset{
		{Name: "720p", MaxHeight: 720, CRF: 26, Preset: "veryfast"},
		{Name: "1080p", MaxHeight: 1080, CRF: 25, Preset: "veryfast"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:  defaultWatchDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Watch: Watch{
			IntervalSeconds: defaultWatchIntervalSeconds,
		},
		Stability: Stability{
			WaitSeconds:  defaultStabilityWaitSeconds,
			GraceSeconds: defaultStabilityGraceSeconds,
			LockProbe:    true,
		},
		Resume: Resume{
			DurationTolerance: defaultDurationToleranceSeconds,
		},
		Retry: Retry{
			MaxAttempts:  defaultRetryMaxAttempts,
			DelaySeconds: defaultRetryDelaySeconds,
		},
		Resources: Resources{
			Enabled:               true,
			MaxCPUPercent:         defaultMaxCPUPercent,
			MinAvailableMemoryGiB: defaultMinAvailableMemoryGiB,
			PollIntervalSeconds:   defaultResourcePollSeconds,
			WaitTimeoutSeconds:    defaultResourceWaitSeconds,
			SampleWindowMillis:    defaultResourceSampleMillis,
		},
		Encoder: Encoder{
			Backend:          defaultEncoderBackend,
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			VideoCodec:       defaultVideoCodec,
			AudioCodec:       defaultAudioCodec,
			AudioBitrate:     defaultAudioBitrate,
			OutputExtension:  defaultOutputExtension,
			KeepIncomplete:   true,
			SkipHEVCSources:  true,
			SupportedFormats: append([]string(nil), defaultSupportedFormats...),
		},
		Quality: Quality{
			Presets: defaultQualityPresets(),
		},
		Categories: Categories{
			MoviesDir:      defaultMoviesDir,
			SeriesDir:      defaultSeriesDir,
			AnimeDir:       defaultAnimeDir,
			AnimeKeywords:  append([]string(nil), defaultAnimeKeywords...),
			SeriesPatterns: append([]string(nil), defaultSeriesPatterns...),
		},
		Verify: Verify{
			Enabled:           true,
			DurationTolerance: defaultDurationToleranceSeconds,
			MinSizeRatio:      defaultVerifyMinSizeRatio,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Failures:       true,
			BatchComplete:  true,
			WatchStopped:   true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
