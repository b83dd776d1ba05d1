package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/notifyd/test/util"
)

// newTestClient wraps a per-test schema connection from the shared test
// database. In CI (when CI_DATABASE_URL is set) that is an external
// PostgreSQL service container, locally a shared testcontainer.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	db := util.SetupTestDatabase(t)
	return NewClientFromDB(db, DefaultPrefix)
}

func TestDatabaseClient_ConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// Test basic connectivity
	err := client.DB().PingContext(ctx)
	require.NoError(t, err)

	// Test health check
	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid config with defaults",
			envVars: map[string]string{},
			wantErr: false,
		},
		{
			name: "valid config with custom values",
			envVars: map[string]string{
				"DATABASE_HOST":           "db.example.com",
				"DATABASE_PORT":           "5433",
				"DATABASE_USER":           "cloud",
				"DATABASE_PASSWORD":       "secret",
				"DATABASE_NAME":           "cloud",
				"DATABASE_SSLMODE":        "require",
				"DATABASE_PREFIX":         "nc_",
				"DATABASE_MAX_OPEN_CONNS": "50",
				"DATABASE_MAX_IDLE_CONNS": "20",
			},
			wantErr: false,
		},
		{
			name: "invalid DATABASE_PORT",
			envVars: map[string]string{
				"DATABASE_PORT": "invalid",
			},
			wantErr:     true,
			errContains: "invalid DATABASE_PORT",
		},
		{
			name: "invalid DATABASE_MAX_OPEN_CONNS",
			envVars: map[string]string{
				"DATABASE_MAX_OPEN_CONNS": "not_a_number",
			},
			wantErr:     true,
			errContains: "invalid DATABASE_MAX_OPEN_CONNS",
		},
		{
			name: "invalid DATABASE_CONN_MAX_LIFETIME",
			envVars: map[string]string{
				"DATABASE_CONN_MAX_LIFETIME": "invalid_duration",
			},
			wantErr:     true,
			errContains: "invalid DATABASE_CONN_MAX_LIFETIME",
		},
		{
			name: "invalid DATABASE_CONN_MAX_IDLE_TIME",
			envVars: map[string]string{
				"DATABASE_CONN_MAX_IDLE_TIME": "not_a_duration",
			},
			wantErr:     true,
			errContains: "invalid DATABASE_CONN_MAX_IDLE_TIME",
		},
		{
			name: "idle conns exceeding open conns",
			envVars: map[string]string{
				"DATABASE_MAX_OPEN_CONNS": "5",
				"DATABASE_MAX_IDLE_CONNS": "10",
			},
			wantErr:     true,
			errContains: "must not exceed",
		},
	}

	envKeys := []string{
		"DATABASE_HOST", "DATABASE_PORT", "DATABASE_USER", "DATABASE_PASSWORD",
		"DATABASE_NAME", "DATABASE_SSLMODE", "DATABASE_PREFIX",
		"DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
		"DATABASE_CONN_MAX_LIFETIME", "DATABASE_CONN_MAX_IDLE_TIME",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				os.Unsetenv(key)
			}
			for key, val := range tt.envVars {
				os.Setenv(key, val)
			}
			t.Cleanup(func() {
				for _, key := range envKeys {
					os.Unsetenv(key)
				}
			})

			cfg, err := LoadConfigFromEnv()

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			if tt.name == "valid config with defaults" {
				assert.Equal(t, "localhost", cfg.Host)
				assert.Equal(t, 5432, cfg.Port)
				assert.Equal(t, "nextcloud", cfg.User)
				assert.Equal(t, "oc_", cfg.Prefix)
				assert.Equal(t, 10, cfg.MaxOpenConns)
				assert.Equal(t, 5, cfg.MaxIdleConns)
				assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
			}
			if tt.name == "valid config with custom values" {
				assert.Equal(t, "db.example.com", cfg.Host)
				assert.Equal(t, 5433, cfg.Port)
				assert.Equal(t, "nc_", cfg.Prefix)
				assert.Equal(t, 50, cfg.MaxOpenConns)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Host:         "localhost",
		Port:         5432,
		User:         "test",
		Database:     "test",
		SSLMode:      "disable",
		Prefix:       DefaultPrefix,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("zero max open conns", func(t *testing.T) {
		cfg := valid
		cfg.MaxOpenConns = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative idle conns", func(t *testing.T) {
		cfg := valid
		cfg.MaxIdleConns = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("idle conns exceed max conns", func(t *testing.T) {
		cfg := valid
		cfg.MaxIdleConns = 20
		assert.Error(t, cfg.Validate())
	})
}

func TestHealthStatus_JSONMilliseconds(t *testing.T) {
	client := newTestClient(t)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.NotNil(t, health)

	// Can be 0 for very fast local pings, but never negative and never a
	// nanosecond-scale value.
	assert.GreaterOrEqual(t, health.ResponseTime, int64(0))
	assert.Less(t, health.ResponseTime, int64(1000), "response time should be less than 1 second for a local ping")

	jsonBytes, err := json.Marshal(health)
	require.NoError(t, err)

	var jsonData map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonBytes, &jsonData))

	responseTime, ok := jsonData["response_time_ms"].(float64)
	require.True(t, ok, "response_time_ms should be a number")
	assert.Less(t, responseTime, float64(1000000), "response_time_ms should be in milliseconds, not nanoseconds")
}
