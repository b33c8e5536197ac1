package split

import "context"

// SourceFetch checks for and downloads remote files.
type SourceFetch interface {
	HeadStatus(ctx context.Context, url string) (int, error)
	Download(ctx context.Context, url, destDir string) (string, error)
}

// ObjectStore publishes local files. An empty URL means the file was not
// published.
type ObjectStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// MediaTool probes and cuts media files. ExtractSegment returns a non-nil
// error only when the encoder could not be run; a failed encode is reported
// through a non-zero exit code and its stderr.
type MediaTool interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractSegment(ctx context.Context, req ExtractRequest) (exitCode int, stderr string, err error)
}

// Ledger records job outcomes. Implementations must be safe to call with a
// cancelled context.
type Ledger interface {
	Begin(ctx context.Context, job JobInfo) error
	Complete(ctx context.Context, id string, summary Summary) error
	Fail(ctx context.Context, id, stage string, cause error) error
}

// ExtractRequest describes one segment cut.
type ExtractRequest struct {
	InputPath    string
	OutputPath   string
	StartSeconds float64
	EndSeconds   float64
	Encoding     Encoding
}
