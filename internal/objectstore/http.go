package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"vsplit/internal/logging"
)

// HTTPDoer describes the HTTP client used by HTTP.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTP publishes with PUT <baseURL>/<file name>.
type HTTP struct {
	baseURL string
	token   string
	client  HTTPDoer
	logger  *slog.Logger
}

// NewHTTP constructs an HTTP store. The token, when set, is sent as a
// bearer credential.
func NewHTTP(baseURL, token string, client HTTPDoer, logger *slog.Logger) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  client,
		logger:  logging.NewComponentLogger(logger, "objectstore"),
	}
}

// Upload PUTs localPath. A non-2xx response is logged and reported as an
// empty URL; transport failures are returned as errors.
func (h *HTTP) Upload(ctx context.Context, localPath string) (string, error) {
	if h.baseURL == "" {
		return "", fmt.Errorf("objectstore: base url not configured")
	}
	logger := logging.WithContext(ctx, h.logger)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("objectstore: open %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("objectstore: stat %s: %w", localPath, err)
	}

	name := filepath.Base(localPath)
	target := objectURL(h.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return "", fmt.Errorf("objectstore: build request: %w", err)
	}
	req.ContentLength = info.Size()
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("objectstore: put %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Error("object upload rejected",
			logging.String("url", target),
			logging.Int("status", resp.StatusCode),
			logging.String("response", strings.TrimSpace(string(body))),
		)
		return "", nil
	}

	logger.Info("object published", logging.String("url", target), logging.Int64("bytes", info.Size()))
	return target, nil
}
