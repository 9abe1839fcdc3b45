package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("flowx")
	require.NoError(t, err)

	assert.Equal(t, "flowx", cfg.Service.Name)
	assert.Equal(t, 8000, cfg.Service.Port)
	assert.Equal(t, "flowx", cfg.Mongo.Database)
	assert.Equal(t, 3, cfg.Engine.MaxWorkflowRestarts)
	assert.Equal(t, 5, cfg.Engine.ReactMaxSteps)
	assert.Equal(t, 24*time.Hour, cfg.Engine.AgentMemoryTTL)
	assert.Empty(t, cfg.Redis.Addr, "redis mirror disabled by default")
	assert.Equal(t, "flowx:events", cfg.Redis.Channel)
	assert.Equal(t, "plugins", cfg.Plugins.Dir)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("MAX_WORKFLOW_RESTARTS", "7")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load("flowx")
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Service.Port)
	assert.Equal(t, 7, cfg.Engine.MaxWorkflowRestarts)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("flowx")
	require.NoError(t, err)

	cfg.Service.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Service.Port = 8000
	cfg.Mongo.URL = ""
	assert.Error(t, cfg.Validate())

	cfg.Mongo.URL = "mongodb://localhost:27017"
	cfg.Engine.ReactMaxSteps = 0
	assert.Error(t, cfg.Validate())
}
