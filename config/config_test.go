package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esaar/collection-engine/billing"
	"github.com/esaar/collection-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "collection.db", cfg.DBPath)
	assert.False(t, cfg.InMemory())
	assert.Equal(t, billing.NewMonth(2026, time.January), cfg.SystemStart)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "memory")
	t.Setenv("SYSTEM_START", "2025-06")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.True(t, cfg.InMemory())
	assert.Equal(t, billing.NewMonth(2025, time.June), cfg.SystemStart)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("SYSTEM_START", "June 2025")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate_LogLevel(t *testing.T) {
	t.Setenv("SYSTEM_START", "2026-01")
	t.Setenv("LOG_LEVEL", "verbose")
	_, err := config.Load()
	assert.Error(t, err)
}
