// Package ffmpeg builds and runs the ffmpeg invocation that cuts one segment
// out of a source file.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// Extract describes one segment extraction.
type Extract struct {
	Input        string
	Output       string
	StartSeconds float64
	EndSeconds   float64
	VideoCodec   string
	VideoPreset  string
	VideoCRF     int
	AudioCodec   string
	AudioBitrate string
}

// Validate reports missing paths or an empty range.
func (e Extract) Validate() error {
	switch {
	case strings.TrimSpace(e.Input) == "":
		return errors.New("ffmpeg extract: input path required")
	case strings.TrimSpace(e.Output) == "":
		return errors.New("ffmpeg extract: output path required")
	case e.StartSeconds < 0 || e.EndSeconds <= e.StartSeconds:
		return fmt.Errorf("ffmpeg extract: invalid range %v-%v", e.StartSeconds, e.EndSeconds)
	}
	return nil
}

// Args returns the ffmpeg argument list: seek to the start, cut at the end,
// re-encode both streams and shift negative timestamps to zero. The output
// file is overwritten.
func (e Extract) Args() []string {
	return ffmpeggo.Input(e.Input).
		Output(e.Output, ffmpeggo.KwArgs{
			"ss":                seconds(e.StartSeconds),
			"to":                seconds(e.EndSeconds),
			"c:v":               e.VideoCodec,
			"preset":            e.VideoPreset,
			"crf":               e.VideoCRF,
			"c:a":               e.AudioCodec,
			"b:a":               e.AudioBitrate,
			"avoid_negative_ts": "make_zero",
		}).
		OverWriteOutput().
		GetArgs()
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Runner executes a binary and reports its exit code and stderr. err is set
// only when the process could not be run to completion.
type Runner func(ctx context.Context, name string, args ...string) (exitCode int, stderr string, err error)

// Exec runs name with args, discarding stdout.
func Exec(ctx context.Context, name string, args ...string) (int, string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return 0, stderr.String(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, stderr.String(), fmt.Errorf("%s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), stderr.String(), nil
	}
	return -1, stderr.String(), fmt.Errorf("%s: %w", name, err)
}
