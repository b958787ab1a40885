package config

import "time"

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverBadger = "badger"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	StoreDriver  string `mapstructure:"store_driver" yaml:"store_driver"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxContentLength  int           `mapstructure:"max_content_length" yaml:"max_content_length"`
	SendBuffer        int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		StoreDriver:       StoreDriverSQLite,
		DatabasePath:      "wirechat.db",
		MaxMessageBytes:   64 << 10,
		MaxContentLength:  4000,
		SendBuffer:        32,
		PingInterval:      30 * time.Second,
		MessagesPerMinute: 120,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.StoreDriver != "" {
		c.StoreDriver = other.StoreDriver
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MaxContentLength != 0 {
		c.MaxContentLength = other.MaxContentLength
	}
	if other.SendBuffer != 0 {
		c.SendBuffer = other.SendBuffer
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
}
