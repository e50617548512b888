package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/uptime-dashboard/internal/config"
	"github.com/leozw/uptime-dashboard/internal/probe"
	"github.com/leozw/uptime-dashboard/internal/queue"
	"github.com/leozw/uptime-dashboard/pkg/monitorapi"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&config.Config{LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = NewLogger(&config.Config{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestOpenDatabase(t *testing.T) {
	conn, repo, err := OpenDatabase(&config.Config{Database: config.DatabaseConfig{URL: ":memory:"}}, zap.NewNop())
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, repo.Ping(context.Background()))
}

func TestSelection_WithoutBackendOrRedis(t *testing.T) {
	cfg := &config.Config{}

	client := NewRedis(cfg)
	assert.Nil(t, client)
	assert.IsType(t, &queue.MemoryQueue{}, NewQueue(cfg, client))

	assert.Nil(t, NewBackend(cfg, nil))
	assert.IsType(t, &probe.Prober{}, NewSource(cfg, nil, zap.NewNop()))
}

func TestSelection_WithBackend(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendConfig{URL: "https://monitor.example.com"}}
	reg, collector := NewRegistry()

	backend := NewBackend(cfg, collector)
	require.NotNil(t, backend)
	assert.IsType(t, &monitorapi.Client{}, NewSource(cfg, backend, zap.NewNop()))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}
