package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vsplit/internal/config"
	"vsplit/internal/logging"
)

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalUploadWithBaseURL(t *testing.T) {
	publish := filepath.Join(t.TempDir(), "published")
	store := NewLocal(publish, "https://cdn.example/splits/", logging.NewNop())
	src := writeArtifact(t, "job1_split_1.mp4", "segment")

	got, err := store.Upload(context.Background(), src)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got != "https://cdn.example/splits/job1_split_1.mp4" {
		t.Fatalf("unexpected url %q", got)
	}
	data, err := os.ReadFile(filepath.Join(publish, "job1_split_1.mp4"))
	if err != nil || string(data) != "segment" {
		t.Fatalf("expected published copy, got %q %v", data, err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must stay for the caller to remove: %v", err)
	}
}

func TestLocalUploadWithoutBaseURLReturnsFileURL(t *testing.T) {
	publish := t.TempDir()
	store := NewLocal(publish, "", logging.NewNop())
	got, err := store.Upload(context.Background(), writeArtifact(t, "talk.json", "{}"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, "/talk.json") {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestLocalUploadReplacesExistingObject(t *testing.T) {
	publish := t.TempDir()
	store := NewLocal(publish, "https://cdn.example", logging.NewNop())
	if _, err := store.Upload(context.Background(), writeArtifact(t, "talk.json", `{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upload(context.Background(), writeArtifact(t, "talk.json", `{"v":2}`)); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(publish, "talk.json"))
	if string(data) != `{"v":2}` {
		t.Fatalf("expected latest manifest, got %q", data)
	}
}

func TestHTTPUpload(t *testing.T) {
	var gotPath, gotAuth, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := NewHTTP(srv.URL+"/bucket/", "secret", srv.Client(), logging.NewNop())
	got, err := store.Upload(context.Background(), writeArtifact(t, "talk.json", `{"video_splits":[]}`))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got != srv.URL+"/bucket/talk.json" {
		t.Fatalf("unexpected url %q", got)
	}
	if gotPath != "/bucket/talk.json" || gotAuth != "Bearer secret" || gotBody != `{"video_splits":[]}` {
		t.Fatalf("unexpected request path=%q auth=%q body=%q", gotPath, gotAuth, gotBody)
	}
	if gotType != "application/json" {
		t.Fatalf("unexpected content type %q", gotType)
	}
}

func TestHTTPUploadRejectedReturnsEmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	store := NewHTTP(srv.URL, "", srv.Client(), logging.NewNop())
	got, err := store.Upload(context.Background(), writeArtifact(t, "job_split_1.mp4", "x"))
	if err != nil {
		t.Fatalf("expected nil error for rejected upload, got %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty url, got %q", got)
	}
}

func TestHTTPUploadMissingFile(t *testing.T) {
	store := NewHTTP("https://cdn.example", "", nil, logging.NewNop())
	if _, err := store.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.PublishDir = t.TempDir()
	store, err := NewFromConfig(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if _, ok := store.(*Local); !ok {
		t.Fatalf("expected local store, got %T", store)
	}

	cfg.Storage.Backend = config.StorageBackendHTTP
	cfg.Storage.BaseURL = "https://cdn.example"
	store, err = NewFromConfig(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if _, ok := store.(*HTTP); !ok {
		t.Fatalf("expected http store, got %T", store)
	}

	cfg.Storage.Backend = "s3"
	if _, err := NewFromConfig(&cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
