package config

const (
	defaultStagingDir     = "~/.local/share/clipforge/staging"
	defaultLogDir         = "~/.local/share/clipforge/logs"
	defaultModelsDir      = "~/.local/share/clipforge/models"
	defaultFFmpegBinary   = "ffmpeg"
	defaultFFprobeBinary  = "ffprobe"
	defaultUpscalerBinary = "realesrgan-ncnn-vulkan"
	defaultResolution     = "1080p"
	defaultQuality        = "medium"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
		},
		Tools: Tools{
			FFmpeg:    defaultFFmpegBinary,
			FFprobe:   defaultFFprobeBinary,
			Upscaler:  defaultUpscalerBinary,
			ModelsDir: defaultModelsDir,
		},
		Render: Render{
			Resolution: defaultResolution,
			Quality:    defaultQuality,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Dir:    defaultLogDir,
		},
	}
}
