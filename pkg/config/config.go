// Package config loads runtime settings for the proxy from, in order of
// precedence, environment variables (XANO_MCP_ prefix), an optional
// config.yaml in the working directory, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "XANO_MCP"

// Defaults applied when neither environment nor config file sets a value.
const (
	DefaultListenAddr         = "127.0.0.1:8080"
	DefaultRequestTimeout     = 10 * time.Second
	DefaultShareTTL           = 24 * time.Hour
	DefaultStreamMaxLifetime  = 30 * time.Minute
	DefaultStreamPingInterval = 25 * time.Second
	DefaultReadTimeout        = 30 * time.Second
	DefaultWriteTimeout       = 0 // streaming endpoints manage their own lifetime
	DefaultIdleTimeout        = 120 * time.Second
	DefaultShutdownTimeout    = 10 * time.Second
)

// Config captures every runtime knob of the proxy.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds.
	ListenAddr string
	// PublicURL is the externally visible base URL, used to build the
	// mcpUrl returned from share creation. Falls back to ListenAddr.
	PublicURL string

	// BaseURL is the Xano registry API root. Required.
	BaseURL string
	// APIKey/APISecret enable HMAC signing of registry calls when set.
	APIKey    string
	APISecret string

	// RequestTimeout bounds each outbound registry call.
	RequestTimeout time.Duration
	// ShareTTL is the share-token lifetime.
	ShareTTL time.Duration

	// StreamMaxLifetime caps how long one event-stream connection lives;
	// StreamPingInterval is the keep-alive cadence within it.
	StreamMaxLifetime  time.Duration
	StreamPingInterval time.Duration

	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("public_url", "")
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("api_secret", "")
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("share_ttl", DefaultShareTTL)
	v.SetDefault("stream_max_lifetime", DefaultStreamMaxLifetime)
	v.SetDefault("stream_ping_interval", DefaultStreamPingInterval)
	v.SetDefault("server_read_timeout", DefaultReadTimeout)
	v.SetDefault("server_write_timeout", DefaultWriteTimeout)
	v.SetDefault("server_idle_timeout", DefaultIdleTimeout)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:         v.GetString("listen_addr"),
		PublicURL:          strings.TrimRight(v.GetString("public_url"), "/"),
		BaseURL:            strings.TrimSpace(v.GetString("base_url")),
		APIKey:             v.GetString("api_key"),
		APISecret:          v.GetString("api_secret"),
		RequestTimeout:     v.GetDuration("request_timeout"),
		ShareTTL:           v.GetDuration("share_ttl"),
		StreamMaxLifetime:  v.GetDuration("stream_max_lifetime"),
		StreamPingInterval: v.GetDuration("stream_ping_interval"),
		ServerReadTimeout:  v.GetDuration("server_read_timeout"),
		ServerWriteTimeout: v.GetDuration("server_write_timeout"),
		ServerIdleTimeout:  v.GetDuration("server_idle_timeout"),
		ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required (XANO_MCP_BASE_URL)")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if !parsed.IsAbs() {
		return errors.New("base_url must be absolute (scheme://host)")
	}
	if c.StreamPingInterval <= 0 {
		return errors.New("stream_ping_interval must be positive")
	}
	if c.StreamMaxLifetime <= 0 {
		return errors.New("stream_max_lifetime must be positive")
	}
	return nil
}

// Public returns the base URL clients should use to reach this proxy.
func (c *Config) Public() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://" + c.ListenAddr
}
