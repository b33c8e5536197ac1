package split

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vsplit/internal/manifest"
	"vsplit/internal/planner"
	"vsplit/internal/services"
)

func TestRunProducesSegmentsAndPublishesManifestEachTime(t *testing.T) {
	h := newHarness(t)
	result, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits: []planner.Request{
			{Start: "0", End: "10"},
			{Start: "0:20", End: "0:40"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.JobID != "job1" || result.ManifestURL != testManifestURL {
		t.Fatalf("unexpected result identity %+v", result)
	}
	if len(result.VideoSplits) != 2 || result.VideoSplits[0].SplitIndex != 1 || result.VideoSplits[1].SplitIndex != 2 {
		t.Fatalf("unexpected splits %+v", result.VideoSplits)
	}
	if result.VideoSplits[1].FileURL != "https://cdn.example/job1_split_2.mp4" {
		t.Fatalf("unexpected file url %q", result.VideoSplits[1].FileURL)
	}
	if result.Produced != 2 || result.Skipped != 0 || result.Rejected != 0 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}

	manifests := h.store.manifestUploads(t)
	if len(manifests) != 2 {
		t.Fatalf("expected manifest published after each segment, got %d uploads", len(manifests))
	}
	if len(manifests[0].VideoSplits) != 1 || len(manifests[1].VideoSplits) != 2 {
		t.Fatalf("expected cumulative manifests, got %+v", manifests)
	}
	if manifests[1].ResolvedPath() != result.InputPath {
		t.Fatalf("expected manifest to record input %q, got %q", result.InputPath, manifests[1].ResolvedPath())
	}

	enc := h.media.requests[0].Encoding
	if enc != DefaultEncoding() {
		t.Fatalf("expected default encoding, got %+v", enc)
	}
	if h.media.requests[1].StartSeconds != 20 || h.media.requests[1].EndSeconds != 40 {
		t.Fatalf("unexpected second range %+v", h.media.requests[1])
	}

	if _, err := os.Stat(result.InputPath); err != nil {
		t.Fatalf("expected input kept for reuse: %v", err)
	}
	for _, name := range h.leftovers(t) {
		if name != "job1_input" {
			t.Fatalf("unexpected staging leftover %q", name)
		}
	}
	if len(h.ledger.calls) != 2 || h.ledger.calls[0].op != "begin" || h.ledger.calls[1].op != "complete" {
		t.Fatalf("unexpected ledger calls %+v", h.ledger.calls)
	}
	if h.ledger.calls[0].info.ManifestURL != testManifestURL || h.ledger.calls[0].info.Requested != 2 {
		t.Fatalf("unexpected ledger begin %+v", h.ledger.calls[0].info)
	}
}

func TestRunSkipsDuplicatesAndReusesInput(t *testing.T) {
	h := newHarness(t)
	input := filepath.Join(t.TempDir(), "prior", "source.mp4")
	if err := os.MkdirAll(filepath.Dir(input), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(input, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	existing := manifest.Empty()
	existing.Merge(input)
	existing.Append(manifest.Entry{SplitIndex: 1, FileURL: "https://cdn.example/old_split_1.mp4", Start: "0:00", End: "0:30"})
	body, err := manifest.Encode(existing)
	if err != nil {
		t.Fatal(err)
	}
	h.fetch.manifestBody = string(body)

	result, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits: []planner.Request{
			{Start: "0:00", End: "0:30"},
			{Start: "0:30", End: "1:00"},
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.fetch.sourceDownloads != 0 {
		t.Fatalf("expected recorded input reused, got %d downloads", h.fetch.sourceDownloads)
	}
	if result.InputPath != input {
		t.Fatalf("expected input %q, got %q", input, result.InputPath)
	}
	if len(h.media.requests) != 1 || h.media.requests[0].StartSeconds != 30 {
		t.Fatalf("expected only split 2 encoded, got %+v", h.media.requests)
	}
	count := 0
	for _, entry := range result.VideoSplits {
		if entry.Start == "0:00" && entry.End == "0:30" {
			count++
			if entry.FileURL != "https://cdn.example/old_split_1.mp4" {
				t.Fatalf("duplicate entry was modified: %+v", entry)
			}
		}
	}
	if count != 1 || len(result.VideoSplits) != 2 {
		t.Fatalf("expected one entry per range, got %+v", result.VideoSplits)
	}
	if result.Produced != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}
}

func TestRunRedownloadsWhenRecordedInputIsGone(t *testing.T) {
	h := newHarness(t)
	existing := manifest.Empty()
	existing.Merge("/nowhere/source.mp4")
	body, err := manifest.Encode(existing)
	if err != nil {
		t.Fatal(err)
	}
	h.fetch.manifestBody = string(body)

	result, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "5"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.fetch.sourceDownloads != 1 {
		t.Fatalf("expected a fresh download, got %d", h.fetch.sourceDownloads)
	}
	published := h.store.manifestUploads(t)
	if got := published[len(published)-1].ResolvedPath(); got != result.InputPath {
		t.Fatalf("expected manifest to record new input %q, got %q", result.InputPath, got)
	}
}

func TestRunNoValidSegmentsTouchesNothing(t *testing.T) {
	h := newHarness(t)
	_, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits: []planner.Request{
			{Start: "10", End: "5"},
			{Start: "abc", End: "20"},
		},
	})
	if !errors.Is(err, planner.ErrNoValidSegments) {
		t.Fatalf("expected ErrNoValidSegments, got %v", err)
	}
	if len(h.media.requests) != 0 || len(h.store.uploads) != 0 {
		t.Fatalf("expected no encode or upload calls, got %d encodes %d uploads", len(h.media.requests), len(h.store.uploads))
	}
	if left := h.leftovers(t); len(left) != 0 {
		t.Fatalf("expected staging cleaned, found %v", left)
	}
	last := h.ledger.calls[len(h.ledger.calls)-1]
	if last.op != "fail" || last.stage != StagePlanning {
		t.Fatalf("expected failure recorded at planning, got %+v", last)
	}
}

func TestRunEncodeFailureKeepsEarlierSegmentsDurable(t *testing.T) {
	h := newHarness(t)
	h.media.failCall = 2
	_, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits: []planner.Request{
			{Start: "0", End: "10"},
			{Start: "10", End: "20"},
			{Start: "20", End: "30"},
		},
	})

	var encodeErr *EncodeFailed
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeFailed, got %v", err)
	}
	if encodeErr.SplitIndex != 2 || !strings.Contains(encodeErr.Stderr, "Conversion failed!") {
		t.Fatalf("unexpected encode failure %+v", encodeErr)
	}
	if !errors.Is(err, ErrEncodeFailed) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected encode sentinels in chain, got %v", err)
	}

	if got := h.store.segmentUploads(); len(got) != 1 || got[0] != "job1_split_1.mp4" {
		t.Fatalf("expected only split 1 uploaded, got %v", got)
	}
	manifests := h.store.manifestUploads(t)
	if len(manifests) != 1 || manifests[0].VideoSplits[0].SplitIndex != 1 {
		t.Fatalf("expected manifest with split 1 published, got %+v", manifests)
	}
	if len(h.media.requests) != 2 {
		t.Fatalf("expected remaining segments skipped, got %d encodes", len(h.media.requests))
	}
	if left := h.leftovers(t); len(left) != 0 {
		t.Fatalf("expected input and temp files removed, found %v", left)
	}
}

func TestRunFailedStateRemovesReusedInput(t *testing.T) {
	h := newHarness(t)
	input := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(input, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	existing := manifest.Empty()
	existing.Merge(input)
	body, _ := manifest.Encode(existing)
	h.fetch.manifestBody = string(body)
	h.media.failCall = 1

	if _, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "10"}},
	}); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Fatalf("expected resolved input removed on failure, stat err: %v", err)
	}
}

func TestRunUploadWithoutURLFails(t *testing.T) {
	h := newHarness(t)
	h.store.emptyFor = "_split_"
	_, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "10"}},
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if len(h.store.manifestUploads(t)) != 0 {
		t.Fatal("manifest must not be published for an unpublished segment")
	}
	if left := h.leftovers(t); len(left) != 0 {
		t.Fatalf("expected staging cleaned, found %v", left)
	}
}

func TestRunManifestUploadFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.store.emptyFor = "keynote.json"
	_, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "10"}, {Start: "10", End: "20"}},
	})
	if !errors.Is(err, manifest.ErrManifestUploadFailed) {
		t.Fatalf("expected ErrManifestUploadFailed, got %v", err)
	}
	if len(h.media.requests) != 1 {
		t.Fatalf("expected run to stop after first segment, got %d encodes", len(h.media.requests))
	}
}

func TestRunFallsBackWhenDurationUnknown(t *testing.T) {
	h := newHarness(t)
	h.media.probeErr = errors.New("moov atom not found")
	if _, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "100000"}},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.media.requests[0].EndSeconds; got != FallbackDurationSeconds {
		t.Fatalf("expected end clamped to fallback %v, got %v", FallbackDurationSeconds, got)
	}
}

func TestRunDownloadFailure(t *testing.T) {
	h := newHarness(t)
	h.fetch.downloadErr = errors.New("connection reset")
	_, err := h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "10"}},
	})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient download error, got %v", err)
	}
	if left := h.leftovers(t); len(left) != 0 {
		t.Fatalf("expected staging cleaned, found %v", left)
	}
}

func TestRunRemoveInputOnSuccess(t *testing.T) {
	h := newHarness(t)
	result, err := h.splitter().Run(context.Background(), Request{
		SourceURL:   testSourceURL,
		Splits:      []planner.Request{{Start: "0", End: "10"}},
		RemoveInput: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(result.InputPath); !os.IsNotExist(err) {
		t.Fatalf("expected input removed, stat err: %v", err)
	}
	if left := h.leftovers(t); len(left) != 0 {
		t.Fatalf("expected staging empty, found %v", left)
	}
}

func TestRunHoldsManifestLockThroughCleanup(t *testing.T) {
	for _, fail := range []bool{false, true} {
		h := newHarness(t)
		input := filepath.Join(t.TempDir(), "source.mp4")
		if err := os.WriteFile(input, []byte("video"), 0o644); err != nil {
			t.Fatal(err)
		}
		existing := manifest.Empty()
		existing.Merge(input)
		body, _ := manifest.Encode(existing)
		h.fetch.manifestBody = string(body)
		if fail {
			h.media.failCall = 1
		}

		lockDir := filepath.Join(h.staging, "locks")
		checked := false
		h.ledger.settled = func() {
			checked = true
			if _, err := os.Stat(input); !os.IsNotExist(err) {
				t.Fatalf("fail=%v: input should be gone before the run settles, stat err: %v", fail, err)
			}
			if _, err := manifest.AcquireLock(lockDir, "keynote.json"); !errors.Is(err, manifest.ErrManifestLocked) {
				t.Fatalf("fail=%v: expected manifest still locked during cleanup, got %v", fail, err)
			}
		}

		_, err := h.splitter().Run(context.Background(), Request{
			SourceURL:   testSourceURL,
			Splits:      []planner.Request{{Start: "0", End: "10"}},
			RemoveInput: true,
		})
		if fail != (err != nil) {
			t.Fatalf("fail=%v: unexpected run error %v", fail, err)
		}
		if !checked {
			t.Fatalf("fail=%v: ledger never saw the run settle", fail)
		}
		lock, err := manifest.AcquireLock(lockDir, "keynote.json")
		if err != nil {
			t.Fatalf("fail=%v: lock should be free after Run: %v", fail, err)
		}
		_ = lock.Release()
	}
}

func TestRunRejectsLockedManifest(t *testing.T) {
	h := newHarness(t)
	lock, err := manifest.AcquireLock(filepath.Join(h.staging, "locks"), "keynote.json")
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	_, err = h.splitter().Run(context.Background(), Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "10"}},
	})
	if !errors.Is(err, manifest.ErrManifestLocked) {
		t.Fatalf("expected ErrManifestLocked, got %v", err)
	}
	if h.fetch.sourceDownloads != 0 || len(h.media.requests) != 0 {
		t.Fatal("locked run must not touch input or encoder")
	}
}

func TestRunValidatesRequest(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"missing url", Request{Splits: []planner.Request{{Start: "0", End: "1"}}}},
		{"relative url", Request{SourceURL: "talks/keynote.mp4", Splits: []planner.Request{{Start: "0", End: "1"}}}},
		{"no splits", Request{SourceURL: testSourceURL}},
		{"crf too high", Request{SourceURL: testSourceURL, Splits: []planner.Request{{Start: "0", End: "1"}}, Encoding: Encoding{VideoCRF: 60}}},
		{"negative crf", Request{SourceURL: testSourceURL, Splits: []planner.Request{{Start: "0", End: "1"}}, Encoding: Encoding{VideoCodec: "libx265", VideoCRF: -1}}},
		{"job id with slash", Request{SourceURL: testSourceURL, Splits: []planner.Request{{Start: "0", End: "1"}}, JobID: "../x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.splitter().Run(context.Background(), tc.req)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if h.fetch.sourceDownloads != 0 || len(h.ledger.calls) != 0 {
				t.Fatal("validation failure must happen before any I/O")
			}
		})
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.splitter().Run(ctx, Request{
		SourceURL: testSourceURL,
		Splits:    []planner.Request{{Start: "0", End: "10"}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(h.media.requests) != 0 {
		t.Fatal("cancelled run must not encode")
	}
	if left := h.leftovers(t); len(left) != 0 {
		t.Fatalf("expected staging cleaned, found %v", left)
	}
}

func TestEncodingDefaults(t *testing.T) {
	if got := (Encoding{}).withDefaults(); got != DefaultEncoding() {
		t.Fatalf("expected zero encoding to use defaults, got %+v", got)
	}
	got := Encoding{VideoCodec: "libx265", VideoCRF: 0}.withDefaults()
	if got.VideoCRF != 0 || got.VideoPreset != "medium" || got.AudioBitrate != "128k" {
		t.Fatalf("unexpected partial defaults %+v", got)
	}
}

func TestEncodeFailedMessageKeepsStderrTail(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, "line")
	}
	lines = append(lines, "Conversion failed!")
	err := &EncodeFailed{SplitIndex: 3, ExitCode: 1, Stderr: strings.Join(lines, "\n")}
	msg := err.Error()
	if !strings.Contains(msg, "split 3") || !strings.HasSuffix(msg, "Conversion failed!") {
		t.Fatalf("unexpected message %q", msg)
	}
	if strings.Count(msg, "line") > stderrTailLines {
		t.Fatalf("expected stderr truncated, got %q", msg)
	}
}
