package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"vsplit/internal/fileutil"
	"vsplit/internal/logging"
)

// Local publishes by copying into a directory, typically one served by a
// web server at baseURL.
type Local struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewLocal constructs a Local store. Without a base URL, Upload returns
// file:// URLs.
func NewLocal(dir, baseURL string, logger *slog.Logger) *Local {
	return &Local{
		dir:     dir,
		baseURL: strings.TrimSpace(baseURL),
		logger:  logging.NewComponentLogger(logger, "objectstore"),
	}
}

// Upload copies localPath into the publish directory under its base name,
// replacing any previous object with that name.
func (l *Local) Upload(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := filepath.Base(localPath)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("objectstore: invalid path %q", localPath)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("objectstore: create publish dir: %w", err)
	}
	dst := filepath.Join(l.dir, name)
	if err := fileutil.CopyFileVerified(localPath, dst); err != nil {
		return "", fmt.Errorf("objectstore: publish %s: %w", name, err)
	}

	var published string
	if l.baseURL != "" {
		published = objectURL(l.baseURL, name)
	} else {
		abs, err := filepath.Abs(dst)
		if err != nil {
			return "", fmt.Errorf("objectstore: resolve %s: %w", dst, err)
		}
		published = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	logging.WithContext(ctx, l.logger).Info("object published", logging.String("url", published))
	return published, nil
}
