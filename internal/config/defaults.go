package config

const (
	defaultOutputDir          = "~/videos/recast"
	defaultStagingDir         = "~/.local/share/recast/staging"
	defaultLogDir             = "~/.local/share/recast/logs"
	defaultHistoryDir         = "~/.local/share/recast/history"
	defaultQueueDB            = "~/.local/share/recast/queue.db"
	defaultAPIBind            = "127.0.0.1:7489"
	defaultVideoFormat        = "mp4"
	defaultAudioFormat        = "mp3"
	defaultQualityCRF         = 23
	defaultSpeedPreset        = "medium"
	defaultVideoBitrateKbps   = 2500
	defaultAudioBitrateKbps   = 128
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultMaxLogTailKiB      = 64
	defaultHistoryMaxEntries  = 100
	defaultNotifyTimeout      = 10
	defaultWatchSettleSeconds = 3
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

func defaultWatchMountRoots() []string {
	return []string{"/media", "/run/media"}
}

func defaultWatchExtensions() []string {
	return []string{".mp4", ".mkv", ".avi", ".mov", ".webm", ".m4v", ".wmv", ".flv", ".ts", ".mpg", ".mpeg"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			HistoryDir: defaultHistoryDir,
			QueueDB:    defaultQueueDB,
			APIBind:    defaultAPIBind,
		},
		Engine: Engine{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Defaults: Defaults{
			VideoFormat:      defaultVideoFormat,
			AudioFormat:      defaultAudioFormat,
			QualityCRF:       defaultQualityCRF,
			SpeedPreset:      defaultSpeedPreset,
			AutoBitrate:      true,
			VideoBitrateKbps: defaultVideoBitrateKbps,
			AudioBitrateKbps: defaultAudioBitrateKbps,
		},
		Queue: Queue{
			PollInterval:       defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxLogTailKiB:      defaultMaxLogTailKiB,
		},
		History: History{
			MaxEntries:   defaultHistoryMaxEntries,
			KeepFailures: true,
			Thumbnails:   true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Failed:         true,
			Queue:          true,
		},
		Watch: Watch{
			MountRoots:    defaultWatchMountRoots(),
			Extensions:    defaultWatchExtensions(),
			SettleSeconds: defaultWatchSettleSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
