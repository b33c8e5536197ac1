package split

import (
	"fmt"
	"strings"

	"vsplit/internal/services"
)

var (
	// ErrEncodeFailed is the sentinel behind every EncodeFailed.
	ErrEncodeFailed = fmt.Errorf("%w: segment encode failed", services.ErrExternalTool)
	// ErrUploadFailed reports that a produced segment could not be published.
	ErrUploadFailed = fmt.Errorf("%w: segment upload failed", services.ErrTransient)
)

const stderrTailLines = 12

// EncodeFailed carries the encoder diagnostics for a failed segment.
type EncodeFailed struct {
	SplitIndex int
	ExitCode   int
	Stderr     string
}

func (e *EncodeFailed) Error() string {
	msg := fmt.Sprintf("encode split %d: encoder exited with status %d", e.SplitIndex, e.ExitCode)
	if tail := stderrTail(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *EncodeFailed) Unwrap() error { return ErrEncodeFailed }

func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
