package remote

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mmcdole/marquee/internal/catalog"
	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/remote/httpapi"
	"github.com/mmcdole/marquee/internal/remote/local"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewClient creates the catalog gateway selected by the configuration.
// The returned closer releases backend resources.
func NewClient(cfg *config.Config, logger *slog.Logger) (catalog.Gateway, io.Closer, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Remote.Type {
	case config.RemoteTypeHTTP:
		if cfg.Remote.URL == "" {
			return nil, nil, fmt.Errorf("remote URL is required")
		}
		return httpapi.NewClient(cfg.Remote.URL, cfg.Remote.Timeout, logger), nopCloser{}, nil

	case config.RemoteTypeLocal:
		store, err := local.Open(cfg.Remote.DataDir, cfg.Local.Admins, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown remote type: %s", cfg.Remote.Type)
	}
}
