package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds client configuration values.
type Config struct {
	APIBaseURL     string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	WSBaseURL      string        `mapstructure:"ws_base_url" yaml:"ws_base_url"`
	StatePath      string        `mapstructure:"state_path" yaml:"state_path"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string        `mapstructure:"log_file" yaml:"log_file"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RememberRoom   bool          `mapstructure:"remember_room" yaml:"remember_room"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:8080",
		WSBaseURL:      "ws://localhost:8080/chat",
		StatePath:      defaultStatePath(),
		LogLevel:       "info",
		DialTimeout:    10 * time.Second,
		RequestTimeout: 10 * time.Second,
		RememberRoom:   true,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.APIBaseURL != "" {
		c.APIBaseURL = other.APIBaseURL
	}
	if other.WSBaseURL != "" {
		c.WSBaseURL = other.WSBaseURL
	}
	if other.StatePath != "" {
		c.StatePath = other.StatePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
}

func defaultStatePath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "wirechat-client.db"
	}
	return filepath.Join(base, "wirechat", "client.db")
}
