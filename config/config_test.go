package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5555", cfg.BindAddr)
	assert.Equal(t, "./cached", cfg.CacheDir)
	assert.Equal(t, 10*time.Minute, cfg.ResultCacheTTL)
	assert.Equal(t, 4, cfg.APIConcurrency)
	assert.Equal(t, 30*time.Minute, cfg.JobTTL)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := []byte("bind_addr: 0.0.0.0:8080\nclient_id: abc\nresult_cache_ttl: 5m\n")
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.BindAddr)
	assert.Equal(t, "abc", cfg.ClientID)
	assert.Equal(t, 5*time.Minute, cfg.ResultCacheTTL)
	assert.Equal(t, 4, cfg.APIConcurrency, "untouched keys keep defaults")
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5555", cfg.BindAddr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("client_id: from-file\n"), 0600))

	t.Setenv("WCL_CLIENT_ID", "from-env")
	t.Setenv("WCL_API_CONCURRENCY", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ClientID)
	assert.Equal(t, 9, cfg.APIConcurrency)
}
