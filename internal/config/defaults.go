package config

const (
	defaultConfigPath           = "~/.config/storyboard/config.toml"
	defaultLogDir               = "~/.local/share/storyboard/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultFrameRate            = 25.0
	defaultWidth                = 320
	defaultHeight               = 240
	defaultDocumentFormat       = "yaml"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultProbeTimeoutSeconds  = 30
	defaultFrameTimeoutSeconds  = 20
	defaultBusyBackoffMillis    = 10
	defaultBusyMaxBackoffMillis = 200
	defaultProbeCacheFile       = "probe_cache.db"

	defaultDiffThreshold         = 3000
	defaultDiffDiffThreshold     = 700
	defaultIgnoreFraction        = 0.15
	defaultBlockSize             = 8
	defaultBlockOutlierThreshold = 2500
	defaultMinSceneFrames        = 4
	defaultSpikeFactor           = 8
	defaultPostCutBoost          = 4
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Storyboard: Storyboard{
			FrameRate: defaultFrameRate,
			Width:     defaultWidth,
			Height:    defaultHeight,
			Format:    defaultDocumentFormat,
		},
		Decoder: Decoder{
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			FrameTimeoutSeconds:  defaultFrameTimeoutSeconds,
			BusyBackoffMillis:    defaultBusyBackoffMillis,
			BusyMaxBackoffMillis: defaultBusyMaxBackoffMillis,
		},
		SceneDetect: SceneDetect{
			DiffThreshold:         defaultDiffThreshold,
			DiffDiffThreshold:     defaultDiffDiffThreshold,
			IgnoreFraction:        defaultIgnoreFraction,
			BlockSize:             defaultBlockSize,
			BlockOutlierThreshold: defaultBlockOutlierThreshold,
			MinSceneFrames:        defaultMinSceneFrames,
			SpikeFactor:           defaultSpikeFactor,
			PostCutBoost:          defaultPostCutBoost,
		},
		ProbeCache: ProbeCache{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
