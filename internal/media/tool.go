// Package media adapts the ffprobe and ffmpeg wrappers to the split
// package's MediaTool interface.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vsplit/internal/logging"
	"vsplit/internal/media/ffmpeg"
	"vsplit/internal/media/ffprobe"
	"vsplit/internal/split"
)

type probeFunc func(ctx context.Context, binary, path string) (float64, error)

// Tool runs ffprobe and ffmpeg binaries.
type Tool struct {
	ffmpegBinary  string
	ffprobeBinary string
	run           ffmpeg.Runner
	probe         probeFunc
	logger        *slog.Logger
}

// NewTool constructs a Tool. Empty binary names fall back to ffmpeg/ffprobe on PATH.
func NewTool(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Tool {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Tool{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		run:           ffmpeg.Exec,
		probe:         ffprobe.Duration,
		logger:        logging.NewComponentLogger(logger, "media"),
	}
}

// WithRunner swaps the process runner, for tests.
func (t *Tool) WithRunner(r ffmpeg.Runner) {
	if r != nil {
		t.run = r
	}
}

// ProbeDuration returns the duration of path in seconds.
func (t *Tool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return t.probe(ctx, t.ffprobeBinary, path)
}

// ExtractSegment cuts req.StartSeconds..req.EndSeconds out of req.InputPath.
func (t *Tool) ExtractSegment(ctx context.Context, req split.ExtractRequest) (int, string, error) {
	ex := ffmpeg.Extract{
		Input:        req.InputPath,
		Output:       req.OutputPath,
		StartSeconds: req.StartSeconds,
		EndSeconds:   req.EndSeconds,
		VideoCodec:   req.Encoding.VideoCodec,
		VideoPreset:  req.Encoding.VideoPreset,
		VideoCRF:     req.Encoding.VideoCRF,
		AudioCodec:   req.Encoding.AudioCodec,
		AudioBitrate: req.Encoding.AudioBitrate,
	}
	if err := ex.Validate(); err != nil {
		return -1, "", err
	}
	if err := os.MkdirAll(filepath.Dir(ex.Output), 0o755); err != nil {
		return -1, "", fmt.Errorf("create output directory: %w", err)
	}

	args := ex.Args()
	logging.WithContext(ctx, t.logger).Debug("running ffmpeg",
		logging.String("binary", t.ffmpegBinary),
		logging.String("args", strings.Join(args, " ")),
	)
	return t.run(ctx, t.ffmpegBinary, args...)
}
