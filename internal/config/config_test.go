package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDefaults_RejectsUnknownDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "mysql"
	require.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaults_PostgresRequiresDSN(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	require.Error(t, cfg.ResolveDefaults())

	cfg.PostgresDSN = "postgres://localhost:5432/slotbot"
	require.NoError(t, cfg.ResolveDefaults())
}

func TestResolveDefaults_RejectsBadTimezone(t *testing.T) {
	cfg := NewForTesting()
	cfg.DefaultTimezone = "Neither/Nowhere"
	require.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaults_BackfillsTopK(t *testing.T) {
	cfg := NewForTesting()
	cfg.ContextTopK = 0
	require.NoError(t, cfg.ResolveDefaults())
	require.Equal(t, 5, cfg.ContextTopK)
}
