package split

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vsplit/internal/logging"
	"vsplit/internal/manifest"
)

const (
	testSourceURL   = "https://media.example/talks/keynote.mp4"
	testManifestURL = "https://media.example/talks/keynote.json"
)

type fakeFetch struct {
	manifestBody    string
	sourceDownloads int
	downloadErr     error
}

func (f *fakeFetch) HeadStatus(_ context.Context, url string) (int, error) {
	if url == testManifestURL && f.manifestBody != "" {
		return http.StatusOK, nil
	}
	return http.StatusNotFound, nil
}

func (f *fakeFetch) Download(_ context.Context, url, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	if url == testManifestURL {
		path := filepath.Join(destDir, "remote.json")
		return path, os.WriteFile(path, []byte(f.manifestBody), 0o644)
	}
	f.sourceDownloads++
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	path := filepath.Join(destDir, "source.mp4")
	return path, os.WriteFile(path, []byte("video"), 0o644)
}

type upload struct {
	name string
	data []byte
}

type fakeStore struct {
	uploads   []upload
	emptyFor  string
	uploadErr error
}

func (s *fakeStore) Upload(_ context.Context, localPath string) (string, error) {
	name := filepath.Base(localPath)
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if s.emptyFor != "" && strings.Contains(name, s.emptyFor) {
		return "", nil
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, upload{name: name, data: data})
	return "https://cdn.example/" + name, nil
}

func (s *fakeStore) manifestUploads(t *testing.T) []manifest.Manifest {
	t.Helper()
	var out []manifest.Manifest
	for _, u := range s.uploads {
		if u.name != "keynote.json" {
			continue
		}
		m, err := manifest.Decode(u.data)
		if err != nil {
			t.Fatalf("uploaded manifest does not decode: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func (s *fakeStore) segmentUploads() []string {
	var out []string
	for _, u := range s.uploads {
		if u.name != "keynote.json" {
			out = append(out, u.name)
		}
	}
	return out
}

type fakeMedia struct {
	duration float64
	probeErr error
	failCall int
	requests []ExtractRequest
}

func (m *fakeMedia) ProbeDuration(context.Context, string) (float64, error) {
	return m.duration, m.probeErr
}

func (m *fakeMedia) ExtractSegment(_ context.Context, req ExtractRequest) (int, string, error) {
	m.requests = append(m.requests, req)
	if err := os.WriteFile(req.OutputPath, []byte("partial"), 0o644); err != nil {
		return -1, "", err
	}
	if m.failCall == len(m.requests) {
		return 1, "Error while opening encoder\nConversion failed!", nil
	}
	return 0, "", nil
}

type ledgerCall struct {
	op    string
	id    string
	stage string
	info  JobInfo
	sum   Summary
	cause error
}

type fakeLedger struct {
	calls []ledgerCall
	err   error
	// settled runs when a run is recorded as completed or failed.
	settled func()
}

func (l *fakeLedger) Begin(_ context.Context, job JobInfo) error {
	l.calls = append(l.calls, ledgerCall{op: "begin", id: job.ID, info: job})
	return l.err
}

func (l *fakeLedger) Complete(_ context.Context, id string, summary Summary) error {
	l.calls = append(l.calls, ledgerCall{op: "complete", id: id, sum: summary})
	if l.settled != nil {
		l.settled()
	}
	return l.err
}

func (l *fakeLedger) Fail(_ context.Context, id, stage string, cause error) error {
	l.calls = append(l.calls, ledgerCall{op: "fail", id: id, stage: stage, cause: cause})
	if l.settled != nil {
		l.settled()
	}
	return l.err
}

type harness struct {
	staging string
	fetch   *fakeFetch
	store   *fakeStore
	media   *fakeMedia
	ledger  *fakeLedger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		staging: filepath.Join(t.TempDir(), "staging"),
		fetch:   &fakeFetch{},
		store:   &fakeStore{},
		media:   &fakeMedia{duration: 100},
		ledger:  &fakeLedger{},
	}
}

func (h *harness) splitter() *Splitter {
	return New(h.staging, h.fetch, h.store, h.media, logging.NewNop(),
		WithLedger(h.ledger),
		WithIDGenerator(func() string { return "job1" }),
	)
}

// leftovers lists staging entries other than the lock directory.
func (h *harness) leftovers(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.staging)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		t.Fatalf("read staging: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Name() != "locks" {
			names = append(names, entry.Name())
		}
	}
	return names
}
