package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TEST_DURATION_OVERRIDE", "")
	t.Setenv("CRM_MAX_ATTEMPTS", "")
	t.Setenv("BACKEND_URL", "http://backend.local/")

	cfg := Load()

	require.Equal(t, 30*time.Minute, cfg.TestDuration)
	require.Equal(t, 50, cfg.CRMMaxAttempts)
	require.Equal(t, 2*time.Second, cfg.CRMRetryDelay)
	require.Equal(t, 2, cfg.MaxViolations)
	require.Equal(t, "http://backend.local", cfg.BackendURL)
	require.Nil(t, cfg.AllowedOrigins)
}

func TestGetEnvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("PROCTOR_DEBOUNCE_WINDOW", "soon")
	require.Equal(t, time.Second, getEnvDuration("PROCTOR_DEBOUNCE_WINDOW", time.Second))

	t.Setenv("PROCTOR_DEBOUNCE_WINDOW", "-5s")
	require.Equal(t, time.Second, getEnvDuration("PROCTOR_DEBOUNCE_WINDOW", time.Second))

	t.Setenv("PROCTOR_DEBOUNCE_WINDOW", "250ms")
	require.Equal(t, 250*time.Millisecond, getEnvDuration("PROCTOR_DEBOUNCE_WINDOW", time.Second))
}

func TestParseOrigins(t *testing.T) {
	require.Equal(t, []string{"https://a.dev", "https://b.dev"}, parseOrigins(" https://a.dev, ,https://b.dev "))
}
