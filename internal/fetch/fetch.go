// Package fetch implements existence checks and downloads for http(s) and
// file URLs.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vsplit/internal/fileutil"
	"vsplit/internal/logging"
	"vsplit/internal/services"
)

// ErrUnknownExtension reports that neither the URL nor the response headers
// identify the file type.
var ErrUnknownExtension = fmt.Errorf("%w: cannot determine file extension", services.ErrValidation)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client downloads remote files into local directories.
type Client struct {
	http      HTTPDoer
	userAgent string
	newName   func() string
	logger    *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithNameGenerator overrides the random base name given to downloads.
func WithNameGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newName = fn
		}
	}
}

// New constructs a Client. A zero timeout leaves requests bounded only by
// their context.
func New(userAgent string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: strings.TrimSpace(userAgent),
		newName:   uuid.NewString,
		logger:    logging.NewComponentLogger(logger, "fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HeadStatus reports the status code of a HEAD request. File URLs report
// 200 when the file exists and 404 when it does not.
func (c *Client) HeadStatus(ctx context.Context, rawURL string) (int, error) {
	u, err := parse(rawURL)
	if err != nil {
		return 0, err
	}
	if u.Scheme == "file" {
		info, err := os.Stat(u.Path)
		switch {
		case err == nil && info.Mode().IsRegular():
			return http.StatusOK, nil
		case err == nil || errors.Is(err, os.ErrNotExist):
			return http.StatusNotFound, nil
		default:
			return 0, fmt.Errorf("stat %s: %w", u.Path, err)
		}
	}

	req, err := c.newRequest(ctx, http.MethodHead, u)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", redact(u), err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Download stores rawURL as <destDir>/<random name><ext> and returns the
// local path. The extension comes from the URL path, falling back to the
// response Content-Type. Nothing is left behind on failure.
func (c *Client) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	u, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	logger := logging.WithContext(ctx, c.logger).With(logging.String("url", redact(u)))

	if u.Scheme == "file" {
		ext := path.Ext(u.Path)
		if ext == "" {
			return "", fmt.Errorf("%w: %s", ErrUnknownExtension, u.Path)
		}
		dst := filepath.Join(destDir, c.newName()+ext)
		if err := fileutil.CopyFile(u.Path, dst); err != nil {
			return "", fmt.Errorf("copy %s: %w", u.Path, err)
		}
		logger.Debug("local source copied", logging.String("path", dst))
		return dst, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, u)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", redact(u), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("get %s: unexpected status %d", redact(u), resp.StatusCode)
	}

	ext := path.Ext(u.Path)
	if ext == "" {
		ext = ExtensionForContentType(resp.Header.Get("Content-Type"))
	}
	if ext == "" {
		return "", fmt.Errorf("%w: %s (content type %q)", ErrUnknownExtension, redact(u), resp.Header.Get("Content-Type"))
	}

	dst := filepath.Join(destDir, c.newName()+ext)
	start := time.Now()
	written, err := fileutil.WriteStream(dst, resp.Body)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", redact(u), err)
	}
	logger.Info("download complete",
		logging.String("path", dst),
		logging.Int64("bytes", written),
		logging.Duration("elapsed", time.Since(start)),
	)
	return dst, nil
}

func (c *Client) newRequest(ctx context.Context, method string, u *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", strings.ToLower(method), err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

var videoTypes = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"video/x-msvideo":  ".avi",
	"video/mpeg":       ".mpg",
	"video/mp2t":       ".ts",
	"video/x-flv":      ".flv",
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"application/json": ".json",
}

// ExtensionForContentType maps a Content-Type header to a file extension,
// or "" when the type is unknown.
func ExtensionForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := videoTypes[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func parse(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", services.ErrValidation, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
		return u, nil
	default:
		return nil, fmt.Errorf("%w: unsupported url scheme %q", services.ErrValidation, u.Scheme)
	}
}

// redact drops credentials and query strings, which often carry signatures.
func redact(u *url.URL) string {
	clean := *u
	clean.User = nil
	clean.RawQuery = ""
	return clean.String()
}
