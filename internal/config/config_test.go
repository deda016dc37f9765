package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/accessmanager/internal/config"
)

func TestLoadAppliesDefaultsWhenOnlyRequiredFieldsAreSet(t *testing.T) {
	t.Setenv("NODE_ID", "node-1")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "node-1", cfg.Node.ID)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "size_or_interval", cfg.Flush.Strategy)
	assert.Equal(t, uint64(200), cfg.Flush.DepthThreshold)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, int32(10), cfg.Storage.Postgres.MaxConns)
}

func TestLoadEnvironmentVariableOverridesDefault(t *testing.T) {
	t.Setenv("NODE_ID", "node-1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_LISTEN_ADDR", ":9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
}

func TestLoadFailsWithoutNodeID(t *testing.T) {
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node.id")
}

func TestLoadFailsOnUnknownFlushStrategy(t *testing.T) {
	t.Setenv("NODE_ID", "node-1")
	t.Setenv("FLUSH_STRATEGY", "bogus")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush.strategy")
}

func TestLoadFailsWhenPostgresDriverMissingDSN(t *testing.T) {
	t.Setenv("NODE_ID", "node-1")
	t.Setenv("STORAGE_DRIVER", "postgres")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.postgres.dsn")
}
