package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "citeline-chronology", cfg.App.ServiceName)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.OTEL.Enabled)
	assert.Equal(t, DefaultSelection(), cfg.Selection)
}

func TestLoad_SelectionOverrides(t *testing.T) {
	t.Setenv("SELECTION_HARD_CAP", "50")
	t.Setenv("SELECTION_UTILITY_EPSILON", "0.1")
	t.Setenv("SELECTION_LOW_UTILITY_STREAK", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Selection.HardCapPerPatient)
	assert.Equal(t, 0.1, cfg.Selection.UtilityEpsilon)
	assert.Equal(t, 8, cfg.Selection.LowUtilityStreak, "invalid values fall back to defaults")
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "citeline",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=citeline sslmode=disable",
		db.DatabaseDSN())
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "localhost", Port: 6379}
	assert.Equal(t, "localhost:6379", r.RedisAddr())
}
