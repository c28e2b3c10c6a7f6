package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUsesHomeOverride(t *testing.T) {
	DefaultHomeOverride = t.TempDir()
	defer func() { DefaultHomeOverride = "" }()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultHomeOverride, cfg.Prefix)
	assert.Equal(t, defaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, defaultCacheTTL, cfg.CacheTTL)
}

func TestGetDurationEnvInvalidFallsBackToDefault(t *testing.T) {
	t.Setenv(envHTTPTimeout, "not-a-duration")
	got := getDurationEnv(envHTTPTimeout, defaultHTTPTimeout, minHTTPTimeout, maxHTTPTimeout)
	assert.Equal(t, defaultHTTPTimeout, got)
}

func TestGetDurationEnvOutOfRangeFallsBackToDefault(t *testing.T) {
	t.Setenv(envHTTPTimeout, "1h")
	got := getDurationEnv(envHTTPTimeout, defaultHTTPTimeout, minHTTPTimeout, 5*time.Second)
	assert.Equal(t, defaultHTTPTimeout, got)
}

func TestGetDurationEnvAcceptsBareSeconds(t *testing.T) {
	t.Setenv(envCacheTTL, "120")
	got := getDurationEnv(envCacheTTL, defaultCacheTTL, minCacheTTL, maxCacheTTL)
	assert.Equal(t, 120*time.Second, got)
}
