package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresSigningSecret(t *testing.T) {
	t.Setenv("WEBCLI_SIGNING_SECRET", "")
	_, err := Load(Overrides{})
	require.ErrorContains(t, err, "WEBCLI_SIGNING_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEBCLI_SIGNING_SECRET", "secret")
	t.Setenv("PORT", "")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 5*time.Minute, cfg.ResumeWindow)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvironmentAndOverrides(t *testing.T) {
	t.Setenv("WEBCLI_SIGNING_SECRET", "secret")
	t.Setenv("PORT", "9001")
	t.Setenv("WEBCLI_RESUME_WINDOW", "30s")
	t.Setenv("WEBCLI_RATE_LIMIT", "3")

	addr := ":7777"
	cfg, err := Load(Overrides{Addr: &addr})
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Addr, "override wins over PORT")
	require.Equal(t, 30*time.Second, cfg.ResumeWindow)
	require.Equal(t, 3, cfg.RateLimit)
}

func TestLoad_RejectsBadDurations(t *testing.T) {
	t.Setenv("WEBCLI_SIGNING_SECRET", "secret")
	t.Setenv("WEBCLI_RESUME_WINDOW", "not-a-duration")
	_, err := Load(Overrides{})
	require.ErrorContains(t, err, "WEBCLI_RESUME_WINDOW")
}
