package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyline-id/keyline/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:              "localhost",
		Port:              5432,
		User:              "postgres",
		Password:          "secret",
		Name:              "keyline",
		SSLMode:           "disable",
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   5 * time.Minute,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}

	poolCfg, err := poolConfig(cfg)

	require.NoError(t, err)
	assert.Equal(t, "keyline", poolCfg.ConnConfig.Database)
	assert.EqualValues(t, 10, poolCfg.MaxConns)
	assert.EqualValues(t, 2, poolCfg.MinConns)
	assert.Equal(t, 5*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, time.Minute, poolCfg.MaxConnIdleTime)
	assert.Equal(t, 30*time.Second, poolCfg.HealthCheckPeriod)
}

func TestPoolConfig_BadDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:    "localhost",
		SSLMode: "not-a-mode",
	}

	_, err := poolConfig(cfg)

	assert.Error(t, err)
}
