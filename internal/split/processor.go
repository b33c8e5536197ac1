package split

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vsplit/internal/logging"
	"vsplit/internal/manifest"
	"vsplit/internal/planner"
	"vsplit/internal/services"
	"vsplit/internal/timecode"
)

// Job carries the per-run values the Processor needs.
type Job struct {
	ID           string
	ManifestName string
	ManifestDir  string
	Encoding     Encoding

	track func(path string)
}

func (j Job) register(path string) {
	if j.track != nil {
		j.track(path)
	}
}

// Processor encodes, publishes, and records one segment at a time.
type Processor struct {
	media      MediaTool
	store      ObjectStore
	manifests  *manifest.Store
	stagingDir string
	logger     *slog.Logger
}

// NewProcessor constructs a Processor writing segment files into stagingDir.
func NewProcessor(stagingDir string, media MediaTool, store ObjectStore, manifests *manifest.Store, logger *slog.Logger) *Processor {
	return &Processor{
		media:      media,
		store:      store,
		manifests:  manifests,
		stagingDir: stagingDir,
		logger:     logging.NewComponentLogger(logger, "processor"),
	}
}

// SegmentPath returns the local output path for a split of inputPath.
func SegmentPath(stagingDir, jobID string, splitIndex int, inputPath string) string {
	return filepath.Join(stagingDir, fmt.Sprintf("%s_split_%d%s", jobID, splitIndex, filepath.Ext(inputPath)))
}

// Process encodes seg from inputPath, uploads the result, appends its entry
// to m and republishes the manifest. The local segment file is removed on
// every path once the encoder has been started.
func (p *Processor) Process(ctx context.Context, seg planner.Segment, inputPath string, job Job, m *manifest.Manifest) (manifest.Entry, error) {
	ctx = services.WithSplitIndex(ctx, seg.SplitIndex)
	logger := logging.WithContext(ctx, p.logger)

	outPath := SegmentPath(p.stagingDir, job.ID, seg.SplitIndex, inputPath)
	job.register(outPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return manifest.Entry{}, services.Wrap(services.ErrConfiguration, "processing_segments", "prepare output", "create staging directory", err)
	}

	logger.Info("encoding split",
		logging.String("start", timecode.Format(seg.StartSeconds)),
		logging.String("end", timecode.Format(seg.EndSeconds)),
		logging.String("output", outPath),
	)
	defer func() {
		if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove local split", logging.String("path", outPath), logging.Error(err))
		}
	}()

	exitCode, stderr, err := p.media.ExtractSegment(ctx, ExtractRequest{
		InputPath:    inputPath,
		OutputPath:   outPath,
		StartSeconds: seg.StartSeconds,
		EndSeconds:   seg.EndSeconds,
		Encoding:     job.Encoding,
	})
	if err != nil {
		return manifest.Entry{}, services.Wrap(services.ErrExternalTool, "processing_segments", "encode", fmt.Sprintf("split %d: encoder did not run", seg.SplitIndex), err)
	}
	if exitCode != 0 {
		return manifest.Entry{}, &EncodeFailed{SplitIndex: seg.SplitIndex, ExitCode: exitCode, Stderr: stderr}
	}

	fileURL, err := p.store.Upload(ctx, outPath)
	if err != nil {
		return manifest.Entry{}, fmt.Errorf("%w: split %d: %w", ErrUploadFailed, seg.SplitIndex, err)
	}
	if strings.TrimSpace(fileURL) == "" {
		return manifest.Entry{}, fmt.Errorf("%w: split %d: no remote url returned", ErrUploadFailed, seg.SplitIndex)
	}

	entry := manifest.Entry{
		SplitIndex: seg.SplitIndex,
		FileURL:    fileURL,
		Start:      seg.Request.Start,
		End:        seg.Request.End,
	}
	m.Merge(inputPath)
	m.Append(entry)
	if _, err := p.manifests.PersistAndUpload(ctx, *m, job.ManifestDir, job.ManifestName); err != nil {
		return manifest.Entry{}, err
	}

	logger.Info("split published", logging.String("file_url", fileURL))
	return entry, nil
}
