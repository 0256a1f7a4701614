package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session_ttl: 10m
faq_threshold: 0.8
knowledge_base_url: http://kb.local
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, cfg.SessionTTL)
	require.Equal(t, 0.8, cfg.FAQThreshold)
	require.Equal(t, "http://kb.local", cfg.KnowledgeBaseURL)
	// Unset keys keep their defaults.
	require.Equal(t, 100, cfg.MaxTrampolineHops)
	require.Equal(t, 0.5, cfg.OptionMatchRatio)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("option_match_ratio: 2.0\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.SessionTTL = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxTrampolineHops = -1
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FAQThreshold = 1.5
	require.Error(t, cfg.Validate())
}
