package split

import (
	"fmt"
	"net/url"
	"strings"

	"vsplit/internal/manifest"
	"vsplit/internal/planner"
	"vsplit/internal/services"
)

// Encoding holds the per-run codec settings.
type Encoding struct {
	VideoCodec   string
	VideoPreset  string
	VideoCRF     int
	AudioCodec   string
	AudioBitrate string
}

// DefaultEncoding returns libx264/medium/23 video and aac/128k audio.
func DefaultEncoding() Encoding {
	return Encoding{
		VideoCodec:   "libx264",
		VideoPreset:  "medium",
		VideoCRF:     23,
		AudioCodec:   "aac",
		AudioBitrate: "128k",
	}
}

// withDefaults fills blank codec fields. A zero Encoding becomes
// DefaultEncoding; otherwise VideoCRF is used as given, since 0 is a valid CRF.
func (e Encoding) withDefaults() Encoding {
	def := DefaultEncoding()
	if e == (Encoding{}) {
		return def
	}
	if strings.TrimSpace(e.VideoCodec) == "" {
		e.VideoCodec = def.VideoCodec
	}
	if strings.TrimSpace(e.VideoPreset) == "" {
		e.VideoPreset = def.VideoPreset
	}
	if strings.TrimSpace(e.AudioCodec) == "" {
		e.AudioCodec = def.AudioCodec
	}
	if strings.TrimSpace(e.AudioBitrate) == "" {
		e.AudioBitrate = def.AudioBitrate
	}
	return e
}

// Request is the input to Splitter.Run.
type Request struct {
	SourceURL string
	Splits    []planner.Request
	// JobID scopes local temp files; generated when empty.
	JobID    string
	Encoding Encoding
	// RemoveInput deletes the local input after a successful run.
	RemoveInput bool
}

// Validate checks the request before any I/O happens.
func (r Request) Validate() error {
	source := strings.TrimSpace(r.SourceURL)
	if source == "" {
		return services.Wrap(services.ErrValidation, "split", "validate request", "source url is required", nil)
	}
	parsed, err := url.Parse(source)
	if err != nil || !parsed.IsAbs() {
		return services.Wrap(services.ErrValidation, "split", "validate request", fmt.Sprintf("source url %q must be absolute", source), err)
	}
	if parsed.Scheme != "file" && parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "split", "validate request", fmt.Sprintf("source url %q has no host", source), nil)
	}
	if len(r.Splits) == 0 {
		return services.Wrap(services.ErrValidation, "split", "validate request", "at least one split is required", nil)
	}
	crf := r.Encoding.withDefaults().VideoCRF
	if crf < 0 || crf > 51 {
		return services.Wrap(services.ErrValidation, "split", "validate request", fmt.Sprintf("video crf %d outside 0-51", crf), nil)
	}
	if id := strings.TrimSpace(r.JobID); id != "" && strings.ContainsAny(id, `/\`) {
		return services.Wrap(services.ErrValidation, "split", "validate request", fmt.Sprintf("job id %q must not contain path separators", id), nil)
	}
	return nil
}

// Result is returned by a successful run.
type Result struct {
	JobID       string
	VideoSplits []manifest.Entry
	InputPath   string
	ManifestURL string
	Summary
}

// Summary counts what a run did with the requested ranges.
type Summary struct {
	Produced int
	Skipped  int
	Rejected int
}

// JobInfo identifies a run for the ledger.
type JobInfo struct {
	ID          string
	SourceURL   string
	ManifestURL string
	Requested   int
}
