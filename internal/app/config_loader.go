package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.ytfetch")
		v.AddConfigPath("/etc/ytfetch")
	}

	// Defaults are registered key by key so YTFETCH_* variables can
	// override settings that are absent from the file.
	for key, value := range configValues(config) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("YTFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Tools.AssetsDir = expandPath(config.Tools.AssetsDir)
	config.Tools.BinDir = expandPath(config.Tools.BinDir)
	config.History.DatabasePath = expandPath(config.History.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// $HOME first, so it still resolves where the variable is unset
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.OutputDir == "" {
		return fmt.Errorf("download output directory not configured")
	}

	if config.Download.Timeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if config.Download.TitleTimeout <= 0 {
		return fmt.Errorf("title timeout must be positive")
	}

	if config.Download.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Tools.BinDir == "" {
		return fmt.Errorf("tools bin directory not configured")
	}

	if config.Tools.Downloader == "" || config.Tools.Transcoder == "" {
		return fmt.Errorf("tool names not configured")
	}

	switch config.Tools.Refresh {
	case domain.RefreshAlways, domain.RefreshMissing:
	default:
		return fmt.Errorf("invalid tools refresh policy: %q", config.Tools.Refresh)
	}

	if config.History.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// configValues flattens config into viper keys matching the mapstructure tags
func configValues(config *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host": config.Server.Host,
		"server.port": config.Server.Port,

		"download.output_dir":       config.Download.OutputDir,
		"download.logs_dir":         config.Download.LogsDir,
		"download.timeout":          config.Download.Timeout.String(),
		"download.title_timeout":    config.Download.TitleTimeout.String(),
		"download.drain_grace":      config.Download.DrainGrace.String(),
		"download.concurrent_limit": config.Download.ConcurrentLimit,
		"download.prefetch_title":   config.Download.PrefetchTitle,
		"download.audio_quality":    config.Download.AudioQuality,

		"tools.assets_dir":    config.Tools.AssetsDir,
		"tools.bin_dir":       config.Tools.BinDir,
		"tools.downloader":    config.Tools.Downloader,
		"tools.transcoder":    config.Tools.Transcoder,
		"tools.refresh":       string(config.Tools.Refresh),
		"tools.chmod_timeout": config.Tools.ChmodTimeout.String(),

		"history.database_path": config.History.DatabasePath,

		"notification.enabled": config.Notification.Enabled,
		"notification.method":  config.Notification.Method,

		"logging.level":       config.Logging.Level,
		"logging.format":      config.Logging.Format,
		"logging.output_path": config.Logging.OutputPath,
	}
}
