package media

import (
	"context"
	"path/filepath"
	"testing"

	"vsplit/internal/logging"
	"vsplit/internal/split"
)

func TestExtractSegmentPassesArgsToRunner(t *testing.T) {
	tool := NewTool("/opt/ffmpeg/bin/ffmpeg", "", logging.NewNop())
	var gotName string
	var gotArgs []string
	tool.WithRunner(func(_ context.Context, name string, args ...string) (int, string, error) {
		gotName = name
		gotArgs = args
		return 1, "boom", nil
	})

	out := filepath.Join(t.TempDir(), "nested", "job_split_1.mp4")
	code, stderr, err := tool.ExtractSegment(context.Background(), split.ExtractRequest{
		InputPath:    "/in.mp4",
		OutputPath:   out,
		StartSeconds: 1,
		EndSeconds:   2,
		Encoding:     split.DefaultEncoding(),
	})
	if err != nil {
		t.Fatalf("ExtractSegment: %v", err)
	}
	if code != 1 || stderr != "boom" {
		t.Fatalf("expected runner result passed through, got %d %q", code, stderr)
	}
	if gotName != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected binary %q", gotName)
	}
	found := false
	for _, arg := range gotArgs {
		if arg == out {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected output path in args %v", gotArgs)
	}
}

func TestExtractSegmentRejectsEmptyRange(t *testing.T) {
	tool := NewTool("", "", logging.NewNop())
	called := false
	tool.WithRunner(func(context.Context, string, ...string) (int, string, error) {
		called = true
		return 0, "", nil
	})
	_, _, err := tool.ExtractSegment(context.Background(), split.ExtractRequest{
		InputPath:    "/in.mp4",
		OutputPath:   filepath.Join(t.TempDir(), "out.mp4"),
		StartSeconds: 5,
		EndSeconds:   5,
	})
	if err == nil {
		t.Fatal("expected error for empty range")
	}
	if called {
		t.Fatal("runner must not be called for invalid requests")
	}
}

func TestProbeDurationUsesConfiguredBinary(t *testing.T) {
	tool := NewTool("", "/opt/ffprobe", logging.NewNop())
	var gotBinary string
	tool.probe = func(_ context.Context, binary, path string) (float64, error) {
		gotBinary = binary
		return 12, nil
	}
	seconds, err := tool.ProbeDuration(context.Background(), "/in.mp4")
	if err != nil || seconds != 12 {
		t.Fatalf("unexpected probe result %v %v", seconds, err)
	}
	if gotBinary != "/opt/ffprobe" {
		t.Fatalf("unexpected binary %q", gotBinary)
	}
}
