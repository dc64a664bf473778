package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "pipeline", cfg.Pipeline.Name)
	assert.Equal(t, "inline", cfg.Executor.Kind)
	assert.Equal(t, 4, cfg.Executor.Pool.MaxWorkers)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_ClusterRequiresAddress(t *testing.T) {
	t.Setenv("DEPIO_EXECUTOR_KIND", "cluster")
	_, err := Load("", "")
	require.Error(t, err)
}
