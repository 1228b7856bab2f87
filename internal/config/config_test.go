package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, RemoteTypeLocal, cfg.Remote.Type)
	assert.Equal(t, 2<<20, cfg.Upload.ChunkSize)
	assert.Equal(t, int64(5<<30), cfg.Upload.MaxVideoSize)
	assert.Equal(t, int64(5<<30), cfg.Upload.MaxImageSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.FetchTimeout)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.False(t, cfg.HasIdentity())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
remote:
  type: http
  url: https://catalog.example.com
  timeout: 5s
identity:
  principal: alice
upload:
  chunk_size: 1048576
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RemoteTypeHTTP, cfg.Remote.Type)
	assert.Equal(t, "https://catalog.example.com", cfg.Remote.URL)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "alice", cfg.Identity.Principal)
	assert.Equal(t, 1<<20, cfg.Upload.ChunkSize)
	assert.Equal(t, int64(5<<30), cfg.Upload.MaxVideoSize, "unset keys keep defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "identity:\n  principal: alice\n")
	t.Setenv("MARQUEE_IDENTITY_PRINCIPAL", "bob")
	t.Setenv("MARQUEE_UPLOAD_CHUNK_SIZE", "4096")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Identity.Principal)
	assert.Equal(t, 4096, cfg.Upload.ChunkSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown remote", func(c *Config) { c.Remote.Type = "ftp" }, true},
		{"http without url", func(c *Config) { c.Remote.Type = RemoteTypeHTTP }, true},
		{"http with url", func(c *Config) { c.Remote.Type = RemoteTypeHTTP; c.Remote.URL = "http://x" }, false},
		{"zero chunk", func(c *Config) { c.Upload.ChunkSize = 0 }, true},
		{"negative ceiling", func(c *Config) { c.Upload.MaxImageSize = -1 }, true},
		{"local without dir", func(c *Config) { c.Remote.DataDir = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_InvalidRejected(t *testing.T) {
	path := writeConfig(t, "remote:\n  type: carrier-pigeon\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSave_RoundTripsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Identity.Principal = "carol"
	cfg.Local.Admins = []string{"carol"}
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "carol", reloaded.Identity.Principal)
	assert.Equal(t, []string{"carol"}, reloaded.Local.Admins)
	assert.Equal(t, cfg.Remote.Timeout, reloaded.Remote.Timeout)
}
