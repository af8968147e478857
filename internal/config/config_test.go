package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{"DB_DSN": "postgres://localhost/school"}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 24*time.Hour, cfg.MaterializeInterval)
	assert.Equal(t, 6, cfg.MaterializeHorizonMonths)
	assert.Equal(t, time.Local, cfg.Timezone)
	assert.False(t, cfg.BotEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"ENV":                        "production",
		"LOG_LEVEL":                  "warn",
		"DB_DRIVER":                  "sqlite",
		"DB_DSN":                     "file:school.db",
		"TIMEZONE":                   "UTC",
		"STORE_TIMEOUT":              "750ms",
		"MATERIALIZE_HORIZON_MONTHS": "3",
		"MATERIALIZE_INTERVAL":       "6h",
		"TELEGRAM_TOKEN":             "123:abc",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "UTC", cfg.Timezone.String())
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 3, cfg.MaterializeHorizonMonths)
	assert.Equal(t, 6*time.Hour, cfg.MaterializeInterval)
	assert.True(t, cfg.BotEnabled())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing dsn", env: map[string]string{}},
		{name: "unknown driver", env: map[string]string{"DB_DSN": "x", "DB_DRIVER": "mysql"}},
		{name: "bad timezone", env: map[string]string{"DB_DSN": "x", "TIMEZONE": "Mars/Olympus"}},
		{name: "bad timeout", env: map[string]string{"DB_DSN": "x", "STORE_TIMEOUT": "soon"}},
		{name: "zero horizon", env: map[string]string{"DB_DSN": "x", "MATERIALIZE_HORIZON_MONTHS": "0"}},
		{name: "negative interval", env: map[string]string{"DB_DSN": "x", "MATERIALIZE_INTERVAL": "-1h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tt.env))
			assert.Error(t, err)
		})
	}
}
