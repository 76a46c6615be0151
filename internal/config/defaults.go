package config

const (
	defaultConfigPath            = "~/.config/smoothieq/config.toml"
	defaultStateDir              = "~/.local/share/smoothieq"
	defaultLogDir                = "~/.local/share/smoothieq/logs"
	defaultPollIntervalMS        = 100
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultNotifyRequestTimeout  = 10
	defaultHistoryEnabled        = true
	defaultHistoryRetentionDays  = 90
	defaultNotifyOnTaskFailed    = true
	defaultNotifyOnQueueFinished = true
)

var defaultExtensions = []string{"mp4", "mkv", "mov", "avi", "webm"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Queue: Queue{
			PollIntervalMS: defaultPollIntervalMS,
			Extensions:     append([]string(nil), defaultExtensions...),
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			TaskFailed:     defaultNotifyOnTaskFailed,
			QueueFinished:  defaultNotifyOnQueueFinished,
		},
		History: History{
			Enabled:       defaultHistoryEnabled,
			RetentionDays: defaultHistoryRetentionDays,
		},
	}
}
