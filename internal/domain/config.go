package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	History      HistoryConfig      `mapstructure:"history"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	OutputDir       string        `mapstructure:"output_dir"`
	LogsDir         string        `mapstructure:"logs_dir"`
	Timeout         time.Duration `mapstructure:"timeout"`       // full download + transcode budget
	TitleTimeout    time.Duration `mapstructure:"title_timeout"` // metadata query budget
	DrainGrace      time.Duration `mapstructure:"drain_grace"`
	ConcurrentLimit int           `mapstructure:"concurrent_limit"`
	PrefetchTitle   bool          `mapstructure:"prefetch_title"`
	AudioQuality    string        `mapstructure:"audio_quality"`
}

// RefreshPolicy decides when bundled binaries are copied to bin_dir
type RefreshPolicy string

const (
	RefreshAlways  RefreshPolicy = "always"  // re-copy on first use in every process
	RefreshMissing RefreshPolicy = "missing" // copy only when the file is absent
)

// ToolsConfig contains the bundled downloader/transcoder configuration
type ToolsConfig struct {
	AssetsDir    string        `mapstructure:"assets_dir"`
	BinDir       string        `mapstructure:"bin_dir"`
	Downloader   string        `mapstructure:"downloader"`
	Transcoder   string        `mapstructure:"transcoder"`
	Refresh      RefreshPolicy `mapstructure:"refresh"`
	ChmodTimeout time.Duration `mapstructure:"chmod_timeout"`
}

// HistoryConfig contains download history configuration
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Download: DownloadConfig{
			OutputDir:       "$HOME/Downloads/YTDownloader",
			LogsDir:         "$HOME/.ytfetch/logs",
			Timeout:         10 * time.Minute,
			TitleTimeout:    2 * time.Minute,
			DrainGrace:      2 * time.Second,
			ConcurrentLimit: 2,
			PrefetchTitle:   false,
			AudioQuality:    "192K",
		},
		Tools: ToolsConfig{
			AssetsDir:    "$HOME/.ytfetch/assets",
			BinDir:       "$HOME/.ytfetch/bin",
			Downloader:   ToolDownloader,
			Transcoder:   ToolTranscoder,
			Refresh:      RefreshAlways,
			ChmodTimeout: 10 * time.Second,
		},
		History: HistoryConfig{
			DatabasePath: "$HOME/.ytfetch/history.db",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
