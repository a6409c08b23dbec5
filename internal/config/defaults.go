package config

const (
	defaultConfigPath     = "~/.config/scott/config.toml"
	defaultBind           = "127.0.0.1:5000"
	defaultDatabasePath   = "~/.local/share/scott/scott.db"
	defaultLogDir         = "~/.local/share/scott/logs"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultRetentionDays  = 14
	defaultMaxLines       = 1000
	defaultUpdateInterval = 5
	defaultStopTimeoutMS  = 500
	serverLogName         = "scott.log"

	maxUpdateInterval = 3600
)

// Environment variables consulted when the matching config value is empty.
const (
	EnvLogMonitorFile = "SCOTT_LOG_MONITOR_FILE"
	EnvDatabasePath   = "SCOTT_DATABASE_PATH"
)

// Default returns a Config populated with repository defaults.
// An empty LogMonitor.File is resolved during normalization to the
// server's own log file.
func Default() Config {
	return Config{
		Server: Server{
			Bind: defaultBind,
		},
		Database: Database{
			Path: defaultDatabasePath,
		},
		LogMonitor: LogMonitor{
			MaxLines:       defaultMaxLines,
			UpdateInterval: defaultUpdateInterval,
			StopTimeoutMS:  defaultStopTimeoutMS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			Dir:           defaultLogDir,
			RetentionDays: defaultRetentionDays,
		},
	}
}
