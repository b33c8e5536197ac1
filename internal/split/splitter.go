package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vsplit/internal/logging"
	"vsplit/internal/manifest"
	"vsplit/internal/planner"
	"vsplit/internal/services"
)

// Run stages, in order. StageFailed is reachable from any of them.
const (
	StageResolvingManifest  = "resolving_manifest"
	StageResolvingInput     = "resolving_input"
	StageProbingDuration    = "probing_duration"
	StagePlanning           = "planning"
	StageProcessingSegments = "processing_segments"
	StageDone               = "done"
	StageFailed             = "failed"
)

// FallbackDurationSeconds is used when the input cannot be probed.
const FallbackDurationSeconds = 86400.0

// Splitter runs split jobs against one staging directory.
type Splitter struct {
	fetch      SourceFetch
	media      MediaTool
	manifests  *manifest.Store
	processor  *Processor
	ledger     Ledger
	stagingDir string
	lockDir    string
	base       *slog.Logger
	logger     *slog.Logger
	newID      func() string
}

// Option customizes a Splitter.
type Option func(*Splitter)

// WithLedger records every run in ledger.
func WithLedger(ledger Ledger) Option {
	return func(s *Splitter) {
		s.ledger = ledger
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Splitter) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New constructs a Splitter.
func New(stagingDir string, fetch SourceFetch, store ObjectStore, media MediaTool, logger *slog.Logger, opts ...Option) *Splitter {
	manifests := manifest.NewStore(fetch, store, logger)
	s := &Splitter{
		fetch:      fetch,
		media:      media,
		manifests:  manifests,
		processor:  NewProcessor(stagingDir, media, store, manifests, logger),
		stagingDir: stagingDir,
		lockDir:    filepath.Join(stagingDir, "locks"),
		base:       logger,
		logger:     logging.NewComponentLogger(logger, "splitter"),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// run tracks the mutable state of a single Run call.
type run struct {
	ctx        context.Context
	logger     *slog.Logger
	stage      string
	inputPath  string
	inputDir   string
	manifestWD string
	temps      []string
	lock       *manifest.Lock
}

func (r *run) enter(stage string) {
	r.stage = stage
	r.ctx = services.WithStage(r.ctx, stage)
	logging.WithContext(r.ctx, r.logger).Info("stage started")
}

func (r *run) track(path string) {
	r.temps = append(r.temps, path)
}

// Run executes req. On failure every local file created by this run and the
// resolved input are removed before the error is returned; segments and
// manifest versions already published stay published. The manifest lock is
// held until that cleanup, or the input removal on success, has finished.
func (s *Splitter) Run(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = s.newID()
	}
	req.Encoding = req.Encoding.withDefaults()

	r := &run{ctx: services.WithJobID(ctx, jobID), logger: s.logger}
	defer s.releaseLock(r)
	manifestURL, _ := manifest.ResolveURL(req.SourceURL)
	s.recordBegin(r.ctx, JobInfo{ID: jobID, SourceURL: req.SourceURL, ManifestURL: manifestURL, Requested: len(req.Splits)})

	result, err := s.execute(r, jobID, req)
	if err == nil {
		s.finish(r, req.RemoveInput)
		r.enter(StageDone)
		s.recordComplete(r.ctx, jobID, result.Summary)
		return result, nil
	}

	failedStage := r.stage
	s.cleanup(r)
	r.enter(StageFailed)
	logging.WithContext(r.ctx, s.logger).Error("split job failed",
		logging.String("failed_stage", failedStage),
		logging.String("error_class", services.Classify(err)),
		logging.Error(err),
	)
	s.recordFail(r.ctx, jobID, failedStage, err)
	return Result{}, fmt.Errorf("split %s: %w", failedStage, err)
}

func (s *Splitter) releaseLock(r *run) {
	if r.lock == nil {
		return
	}
	if err := r.lock.Release(); err != nil {
		s.logger.Warn("failed to release manifest lock", logging.String("path", r.lock.Path()), logging.Error(err))
	}
	r.lock = nil
}

func (s *Splitter) execute(r *run, jobID string, req Request) (Result, error) {
	r.enter(StageResolvingManifest)
	manifestURL, err := manifest.ResolveURL(req.SourceURL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, StageResolvingManifest, "resolve manifest url", "", err)
	}
	manifestName := manifest.Name(manifestURL)
	if r.lock, err = manifest.AcquireLock(s.lockDir, manifestName); err != nil {
		return Result{}, err
	}

	r.manifestWD = filepath.Join(s.stagingDir, jobID+"_manifest")
	r.track(r.manifestWD)
	m := s.manifests.Load(r.ctx, manifestURL, r.manifestWD)

	r.enter(StageResolvingInput)
	if err := s.resolveInput(r, jobID, req.SourceURL, &m); err != nil {
		return Result{}, err
	}

	r.enter(StageProbingDuration)
	duration := s.probeDuration(r)

	r.enter(StagePlanning)
	plan, err := planner.Build(req.Splits, duration, m.VideoSplits, logging.WithContext(r.ctx, s.base))
	if err != nil {
		return Result{}, err
	}

	r.enter(StageProcessingSegments)
	job := Job{
		ID:           jobID,
		ManifestName: manifestName,
		ManifestDir:  r.manifestWD,
		Encoding:     req.Encoding,
		track:        r.track,
	}
	pending := plan.Pending()
	for _, seg := range pending {
		if err := r.ctx.Err(); err != nil {
			return Result{}, err
		}
		if _, err := s.processor.Process(r.ctx, seg, r.inputPath, job, &m); err != nil {
			return Result{}, err
		}
	}

	return Result{
		JobID:       jobID,
		VideoSplits: m.Clone().VideoSplits,
		InputPath:   r.inputPath,
		ManifestURL: manifestURL,
		Summary: Summary{
			Produced: len(pending),
			Skipped:  plan.Duplicates(),
			Rejected: plan.Rejected,
		},
	}, nil
}

func (s *Splitter) resolveInput(r *run, jobID, sourceURL string, m *manifest.Manifest) error {
	logger := logging.WithContext(r.ctx, s.logger)
	if recorded := m.ResolvedPath(); recorded != "" {
		if info, err := os.Stat(recorded); err == nil && info.Mode().IsRegular() {
			logger.Info("reusing local input recorded in manifest", logging.String("input", recorded))
			r.inputPath = recorded
			return nil
		}
		logger.Info("recorded input missing locally; downloading again", logging.String("recorded", recorded))
		m.ClearVideoPath()
	}

	r.inputDir = filepath.Join(s.stagingDir, jobID+"_input")
	path, err := s.fetch.Download(r.ctx, sourceURL, r.inputDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, StageResolvingInput, "download source", "", err)
	}
	r.inputPath = path
	logger.Info("input downloaded", logging.String("input", path))
	return nil
}

func (s *Splitter) probeDuration(r *run) float64 {
	logger := logging.WithContext(r.ctx, s.logger)
	seconds, err := s.media.ProbeDuration(r.ctx, r.inputPath)
	if err == nil && seconds > 0 && !math.IsNaN(seconds) && !math.IsInf(seconds, 0) {
		logger.Info("input duration probed", logging.Float64("duration_seconds", seconds))
		return seconds
	}
	attrs := []logging.Attr{logging.Float64("fallback_seconds", FallbackDurationSeconds)}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	} else {
		attrs = append(attrs, logging.Float64("probed_seconds", seconds))
	}
	logger.Warn("could not determine input duration; using fallback", logging.Args(attrs...)...)
	return FallbackDurationSeconds
}

// finish drops per-run scratch space and, when asked, the input file.
func (s *Splitter) finish(r *run, removeInput bool) {
	s.removeAll(r, r.manifestWD)
	if !removeInput {
		return
	}
	s.remove(r, r.inputPath)
	if r.inputDir != "" {
		s.removeAll(r, r.inputDir)
	}
}

func (s *Splitter) cleanup(r *run) {
	s.remove(r, r.inputPath)
	if r.inputDir != "" {
		s.removeAll(r, r.inputDir)
	}
	for _, path := range r.temps {
		s.removeAll(r, path)
	}
}

func (s *Splitter) remove(r *run, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WithContext(r.ctx, s.logger).Warn("failed to remove local file", logging.String("path", path), logging.Error(err))
	}
}

func (s *Splitter) removeAll(r *run, path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logging.WithContext(r.ctx, s.logger).Warn("failed to remove local directory", logging.String("path", path), logging.Error(err))
	}
}

func (s *Splitter) recordBegin(ctx context.Context, job JobInfo) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Begin(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Warn("job ledger write failed", logging.String("op", "begin"), logging.Error(err))
	}
}

func (s *Splitter) recordComplete(ctx context.Context, id string, summary Summary) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Complete(context.WithoutCancel(ctx), id, summary); err != nil {
		s.logger.Warn("job ledger write failed", logging.String("op", "complete"), logging.Error(err))
	}
}

func (s *Splitter) recordFail(ctx context.Context, id, stage string, cause error) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Fail(context.WithoutCancel(ctx), id, stage, cause); err != nil {
		s.logger.Warn("job ledger write failed", logging.String("op", "fail"), logging.Error(err))
	}
}
