package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultAuditTopic, cfg.AuditTopic)
}

func TestLoad_CustomTTLs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
}

func TestLoad_RejectsMissingSecrets(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsEqualSecrets(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "same-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "same-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_RejectsBadTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
