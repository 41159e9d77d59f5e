package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Network NetworkConfig `mapstructure:"network"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig defines the HTTP API listener
type ServerConfig struct {
	Listen string `mapstructure:"listen"` // e.g. "0.0.0.0:8080"
}

// StorageConfig defines where persisted printer settings live
type StorageConfig struct {
	SettingsFile string `mapstructure:"settings_file"`
}

// NetworkConfig defines the default local-network printer agent
type NetworkConfig struct {
	PrinterHost string `mapstructure:"printer_host"`
	PrinterPort int    `mapstructure:"printer_port"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path, empty for stderr
}

// LoadConfig loads configuration from file. An empty configFile falls
// back to the conventional search paths; a missing file there is not an
// error, defaults apply.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/printengine/")
		v.AddConfigPath("$HOME/.printengine")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("server.listen", "0.0.0.0:8080")
	v.SetDefault("storage.settings_file", "printer_settings.json")
	v.SetDefault("network.printer_host", "127.0.0.1")
	v.SetDefault("network.printer_port", 9100)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Log.Level = strings.ToLower(config.Log.Level)

	return &config, nil
}
