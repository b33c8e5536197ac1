// Package objectstore publishes split artifacts and manifests.
package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vsplit/internal/config"
)

// Store publishes a local file and returns its public URL. An empty URL
// means the file was not published.
type Store interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// NewFromConfig returns the backend selected by cfg.Storage.Backend.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("objectstore: config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case config.StorageBackendLocal, "":
		return NewLocal(cfg.Paths.PublishDir, cfg.Storage.BaseURL, logger), nil
	case config.StorageBackendHTTP:
		client := &http.Client{Timeout: time.Duration(cfg.Storage.TimeoutSeconds) * time.Second}
		return NewHTTP(cfg.Storage.BaseURL, cfg.Storage.Token, client, logger), nil
	default:
		return nil, fmt.Errorf("objectstore: unknown backend %q", cfg.Storage.Backend)
	}
}

func objectURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/" + escapeName(name)
}

func escapeName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "%", "%25"), " ", "%20")
}
