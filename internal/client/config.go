// Package client is everything the satchel CLI needs to talk to a
// satcheld server: configuration, the saved session, the bookmark API,
// and the change-notification channel.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the CLI-side configuration, read from
// ~/.satchel/config.yaml with SATCHEL_* environment overrides.
type Config struct {
	ServerURL      string        `mapstructure:"server_url"`
	DataDir        string        `mapstructure:"data_dir"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoadConfig resolves configuration and guarantees the data directory
// exists. A missing config file is not an error; defaults apply.
func LoadConfig() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	defaultDataDir := filepath.Join(homeDir, ".satchel")

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("request_timeout", 15*time.Second)

	// Environment variable overrides
	viper.SetEnvPrefix("SATCHEL")
	viper.AutomaticEnv()
	_ = viper.BindEnv("server_url", "SATCHEL_SERVER_URL")
	_ = viper.BindEnv("data_dir", "SATCHEL_DATA_DIR")
	_ = viper.BindEnv("request_timeout", "SATCHEL_REQUEST_TIMEOUT")

	// Config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultDataDir)

	// Read config file if exists (ignore error if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("invalid server_url %q: %w", cfg.ServerURL, err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// HTTPClient builds a client honoring the configured request timeout.
func (c *Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.RequestTimeout}
}

// SessionPath is where the signed-in session is persisted.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}

// EventsURL is the WebSocket endpoint derived from ServerURL.
func (c *Config) EventsURL() string {
	u := c.ServerURL + "/api/events"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
