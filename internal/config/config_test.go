package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.False(t, cfg.IsProd())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("BACKEND", "datastore")
	t.Setenv("DATASTORE_PROJECT_ID", "tasks-dev")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("REMOTE_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProd())
	assert.Equal(t, BackendDatastore, cfg.Backend)
	assert.Equal(t, "tasks-dev", cfg.DatastoreProjectID)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 2*time.Second, cfg.RemoteTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "unknown backend", env: map[string]string{"JWT_SECRET": "s", "BACKEND": "mongo"}},
		{name: "datastore without project", env: map[string]string{"JWT_SECRET": "s", "BACKEND": "datastore", "DATASTORE_PROJECT_ID": ""}},
		{name: "no workers", env: map[string]string{"JWT_SECRET": "s", "WORKER_COUNT": "0"}},
		{name: "zero remote timeout", env: map[string]string{"JWT_SECRET": "s", "REMOTE_TIMEOUT": "0s"}},
		{name: "negative remote timeout", env: map[string]string{"JWT_SECRET": "s", "REMOTE_TIMEOUT": "-1s"}},
		{name: "zero refresh interval", env: map[string]string{"JWT_SECRET": "s", "REFRESH_INTERVAL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
