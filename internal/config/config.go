// Package config loads musicd configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration for the streaming server.
type Config struct {
	// Port is the HTTP listen port. The PORT name matches common PaaS conventions.
	Port int `env:"PORT" envDefault:"10000"`
	// Host is the bind address.
	Host string `env:"MUSICD_HOST" envDefault:"0.0.0.0"`

	// CookiesFile is the path to a Netscape cookies.txt export. Empty means
	// youtube_cookies.txt next to the binary.
	CookiesFile string `env:"MUSICD_COOKIES_FILE"`

	// Quality is the default audio quality when a request omits it.
	Quality string `env:"MUSICD_QUALITY" envDefault:"high"`

	// CachePath is the SQLite stream-URL cache location. Empty disables the
	// persistent cache and uses the in-memory one.
	CachePath string `env:"MUSICD_CACHE_PATH"`
	// CacheTTL bounds how long resolved stream URLs are reused when the URL
	// itself does not carry an expiry.
	CacheTTL time.Duration `env:"MUSICD_CACHE_TTL" envDefault:"5h"`

	// HTTPTimeout applies to all upstream YouTube calls.
	HTTPTimeout time.Duration `env:"MUSICD_HTTP_TIMEOUT" envDefault:"30s"`
	// ProxyURL routes upstream traffic through a proxy (http/https/socks).
	ProxyURL string `env:"MUSICD_PROXY"`

	// RateLimitBps caps proxy streaming throughput per request. Zero disables.
	RateLimitBps int64 `env:"MUSICD_RATE_LIMIT_BPS" envDefault:"0"`

	// LogLevel is one of TRACE, DEBUG, INFO, WARN, ERROR.
	LogLevel string `env:"MUSICD_LOG_LEVEL" envDefault:"INFO"`
	// LogFormat is one of text, json, color.
	LogFormat string `env:"MUSICD_LOG_FORMAT" envDefault:"text"`
	// LogFile, when set, sends logs to that file with size/age rotation
	// instead of stdout.
	LogFile string `env:"MUSICD_LOG_FILE"`
}

// FromEnv parses configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
