package remote

import (
	"testing"

	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/remote/httpapi"
	"github.com/mmcdole/marquee/internal/remote/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.DataDir = t.TempDir()

		gw, closer, err := NewClient(cfg, log.NullLogger())
		require.NoError(t, err)
		defer closer.Close()
		assert.IsType(t, &local.Store{}, gw)
	})

	t.Run("http", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Type = config.RemoteTypeHTTP
		cfg.Remote.URL = "http://catalog.invalid"

		gw, closer, err := NewClient(cfg, log.NullLogger())
		require.NoError(t, err)
		assert.NoError(t, closer.Close())
		assert.IsType(t, &httpapi.Client{}, gw)
	})

	t.Run("http without url", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Type = config.RemoteTypeHTTP
		_, _, err := NewClient(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Type = "gopher"
		_, _, err := NewClient(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("nil config", func(t *testing.T) {
		_, _, err := NewClient(nil, nil)
		assert.Error(t, err)
	})
}
