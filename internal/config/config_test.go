package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8083, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 3*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 64, cfg.SendBufferSize)
	assert.Equal(t, "message-relay", cfg.ServiceName)
	assert.False(t, cfg.DebugRoutes)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "badger")
	t.Setenv("PERSIST_TIMEOUT", "250ms")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DEBUG_ROUTES", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, DriverBadger, cfg.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.PersistTimeout)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.True(t, cfg.DebugRoutes)
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 8083, StoreDriver: DriverPostgres, DBDSN: "postgres://localhost/relay", PersistTimeout: time.Second, SendBufferSize: 8}
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"unknown driver":       func(c *Config) { c.StoreDriver = "sqlite" },
		"postgres without dsn": func(c *Config) { c.DBDSN = "" },
		"zero port":            func(c *Config) { c.Port = 0 },
		"zero timeout":         func(c *Config) { c.PersistTimeout = 0 },
		"zero send buffer":     func(c *Config) { c.SendBufferSize = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
