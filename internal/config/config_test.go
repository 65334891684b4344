package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromPathCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	// The file was written so the user can edit it later.
	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8420", cfg.Server.Addr)
	assert.Equal(t, 2048, cfg.Router.MaxTokens)
	assert.Equal(t, 2*time.Minute, cfg.Market.CacheTTL)
	assert.Equal(t, 3, cfg.Assistant.MemoryRecall)
	require.Contains(t, cfg.LLM.Providers, "ollama")
	assert.Equal(t, "http://127.0.0.1:11434", cfg.LLM.Providers["ollama"].Endpoint)
}

func TestLoadFromPathMergesSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	sparse := `
server:
  addr: "0.0.0.0:9000"
llm:
  providers:
    ollama:
      endpoint: "http://10.0.0.5:11434"
`
	require.NoError(t, os.WriteFile(path, []byte(sparse), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.LLM.Providers["ollama"].Endpoint)
	// Unset fields fall back to defaults.
	assert.Equal(t, 2048, cfg.Router.MaxTokens)
	assert.Equal(t, 45, cfg.LLM.Providers["ollama"].TimeoutSec)
	assert.NotEmpty(t, cfg.Memory.Dir)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".homedeck"), expandPath("~/.homedeck"))
	assert.Equal(t, "/var/lib/homedeck", expandPath("/var/lib/homedeck"))
}
