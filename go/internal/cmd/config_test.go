package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, session.DefaultPolicy(), config.Policy())
}

func TestLoadConfigOverridesPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  waiting_ttl: 2h
  allowed_durations: []
  deep_link_scheme: studybuddy
scheduler:
  workers: 2
  sweep_interval: 30s
`), 0o600))

	config, err := loadConfig(path)
	require.NoError(t, err)

	policy := config.Policy()
	assert.Equal(t, 2*time.Hour, policy.WaitingTTL)
	assert.Equal(t, 2*time.Second, policy.CompleteTolerance)
	assert.Empty(t, policy.AllowedDurations, "an explicit empty list lifts the restriction")
	assert.Equal(t, "studybuddy", policy.DeepLinkScheme)
	assert.Equal(t, 2, config.Scheduler.Workers)
	assert.Equal(t, 30*time.Second, config.Scheduler.SweepInterval)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [unterminated"), 0o600))

	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("SCHEDULER_WORKERS", "8")
	assert.Equal(t, 8, getEnvAsInt("SCHEDULER_WORKERS", 4))

	t.Setenv("SCHEDULER_WORKERS", "many")
	assert.Equal(t, 4, getEnvAsInt("SCHEDULER_WORKERS", 4))
}
