package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"vsplit/internal/logging"
)

// Fetcher is the subset of the source fetch capability the store needs.
type Fetcher interface {
	HeadStatus(ctx context.Context, url string) (int, error)
	Download(ctx context.Context, url, destDir string) (string, error)
}

// Uploader publishes a local file and returns its remote URL, or "" when the
// file was not published.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Store loads and publishes manifests through the fetch and upload collaborators.
type Store struct {
	fetch  Fetcher
	upload Uploader
	logger *slog.Logger
}

// NewStore constructs a manifest store.
func NewStore(fetch Fetcher, upload Uploader, logger *slog.Logger) *Store {
	return &Store{
		fetch:  fetch,
		upload: upload,
		logger: logging.NewComponentLogger(logger, "manifest"),
	}
}

// Load fetches and parses the manifest at manifestURL, downloading it into
// workDir. Every failure degrades to Empty and is logged; Load never errors.
func (s *Store) Load(ctx context.Context, manifestURL, workDir string) Manifest {
	logger := logging.WithContext(ctx, s.logger).With(logging.String("manifest_url", manifestURL))

	status, err := s.fetch.HeadStatus(ctx, manifestURL)
	if err != nil {
		s.anomaly(logger, "manifest existence check failed; starting from empty manifest", err)
		return Empty()
	}
	if status != http.StatusOK {
		logger.Info("no manifest found; starting from empty manifest", logging.Int("status", status))
		return Empty()
	}

	localPath, err := s.fetch.Download(ctx, manifestURL, workDir)
	if err != nil {
		s.anomaly(logger, "manifest download failed; starting from empty manifest", err)
		return Empty()
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove downloaded manifest", logging.String("path", localPath), logging.Error(err))
		}
	}()

	data, err := os.ReadFile(localPath)
	if err != nil {
		s.anomaly(logger, "manifest read failed; starting from empty manifest", err)
		return Empty()
	}
	m, err := Decode(data)
	if err != nil {
		s.anomaly(logger, "manifest malformed; starting from empty manifest", err)
		return Empty()
	}

	logger.Info("manifest loaded",
		logging.Int("existing_splits", len(m.VideoSplits)),
		logging.String("video_path", m.ResolvedPath()),
	)
	return m
}

// PersistAndUpload writes the manifest as <workDir>/<name> and publishes it.
// The local file is removed whether or not the upload succeeds. An empty
// remote URL is reported as ErrManifestUploadFailed.
func (s *Store) PersistAndUpload(ctx context.Context, m Manifest, workDir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("persist manifest: invalid name %q", name)
	}
	data, err := Encode(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("persist manifest: create work dir: %w", err)
	}

	localPath := filepath.Join(workDir, name)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", fmt.Errorf("persist manifest: write %s: %w", localPath, err)
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove local manifest", logging.String("path", localPath), logging.Error(err))
		}
	}()

	remoteURL, err := s.upload.Upload(ctx, localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrManifestUploadFailed, name, err)
	}
	if strings.TrimSpace(remoteURL) == "" {
		return "", fmt.Errorf("%w: %s: no remote url returned", ErrManifestUploadFailed, name)
	}

	logging.WithContext(ctx, s.logger).Info("manifest published",
		logging.String("manifest_url", remoteURL),
		logging.Int("splits", len(m.VideoSplits)),
	)
	return remoteURL, nil
}

func (s *Store) anomaly(logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, logging.Alert("manifest_load_anomaly"), logging.Error(err))
}
