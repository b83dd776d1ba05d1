// Package config loads the notifyd runtime configuration from environment
// variables. Database settings live in pkg/database, next to the client that
// consumes them.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Config holds the daemon-level settings.
type Config struct {
	// Port is the listen port for the HTTP/WebSocket server.
	Port int
	// BindAddr is the listen address (empty = all interfaces).
	BindAddr string

	// RedisURL is the bus connection string, e.g. redis://localhost:6379/0.
	RedisURL string
	// RedisChannel is the pub/sub channel carrying event records.
	RedisChannel string

	// BackendURL is the base URL of the companion web application used for
	// credential verification and the test probes.
	BackendURL string

	// LogLevel is the base log level (debug, info, warn, error).
	LogLevel string
}

// LoadFromEnv reads the configuration, applying defaults for everything
// except BACKEND_URL, which has no sensible default.
func LoadFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("NOTIFY_PORT", "7867"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid NOTIFY_PORT: %w", err)
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		return Config{}, fmt.Errorf("BACKEND_URL is required")
	}
	if _, err := url.Parse(backendURL); err != nil {
		return Config{}, fmt.Errorf("invalid BACKEND_URL: %w", err)
	}

	return Config{
		Port:         port,
		BindAddr:     os.Getenv("NOTIFY_BIND"),
		RedisURL:     getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisChannel: getEnvOrDefault("REDIS_CHANNEL", "notify_push"),
		BackendURL:   backendURL,
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// ListenAddr returns the bind address in host:port form.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
