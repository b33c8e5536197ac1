package config

const (
	defaultStagingDir     = "~/.local/share/vsplit/staging"
	defaultLogDir         = "~/.local/share/vsplit/logs"
	defaultPublishDir     = "~/.local/share/vsplit/published"
	defaultJobsPath       = "~/.local/share/vsplit/jobs.db"
	defaultVideoCodec     = "libx264"
	defaultVideoPreset    = "medium"
	defaultVideoCRF       = 23
	defaultAudioCodec     = "aac"
	defaultAudioBitrate   = "128k"
	defaultStorageBackend = StorageBackendLocal
	defaultFFmpegBinary   = "ffmpeg"
	defaultFFprobeBinary  = "ffprobe"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultUserAgent      = "vsplit/dev"
	defaultMinFreeGiB     = 5
	defaultRetentionDays  = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			PublishDir: defaultPublishDir,
			MinFreeGiB: defaultMinFreeGiB,
		},
		Encoding: Encoding{
			VideoCodec:   defaultVideoCodec,
			VideoPreset:  defaultVideoPreset,
			VideoCRF:     defaultVideoCRF,
			AudioCodec:   defaultAudioCodec,
			AudioBitrate: defaultAudioBitrate,
		},
		Storage: Storage{
			Backend: defaultStorageBackend,
		},
		Fetch: Fetch{
			UserAgent: defaultUserAgent,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Jobs: Jobs{
			Enabled: true,
			Path:    defaultJobsPath,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
