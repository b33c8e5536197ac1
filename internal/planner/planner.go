// Package planner turns requested time ranges into the ordered set of
// segments a split run has to encode.
package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"vsplit/internal/logging"
	"vsplit/internal/manifest"
	"vsplit/internal/services"
	"vsplit/internal/timecode"
)

// ErrNoValidSegments reports that every requested range was rejected.
var ErrNoValidSegments = fmt.Errorf("%w: no valid split segments specified", services.ErrValidation)

// Request is one raw range as supplied by the caller.
type Request struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Segment is an accepted request with its clamped bounds. Duplicate segments
// carry the manifest entry that already covers them.
type Segment struct {
	SplitIndex   int
	Request      Request
	StartSeconds float64
	EndSeconds   float64
	Duplicate    bool
	Existing     manifest.Entry
}

// Plan is the outcome of planning a run.
type Plan struct {
	Segments []Segment
	Rejected int
}

// Pending returns the segments that still need encoding, in split index order.
func (p Plan) Pending() []Segment {
	pending := make([]Segment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		if !seg.Duplicate {
			pending = append(pending, seg)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].SplitIndex < pending[j].SplitIndex
	})
	return pending
}

// Duplicates returns the number of accepted segments already in the manifest.
func (p Plan) Duplicates() int {
	count := 0
	for _, seg := range p.Segments {
		if seg.Duplicate {
			count++
		}
	}
	return count
}

// Build validates and clamps requests against durationSeconds and marks the
// ranges already present in existing. Split indices follow the position in
// requests, so rejected entries leave gaps.
func Build(requests []Request, durationSeconds float64, existing []manifest.Entry, logger *slog.Logger) (Plan, error) {
	logger = logging.NewComponentLogger(logger, "planner")
	history := manifest.Manifest{VideoSplits: existing}

	var plan Plan
	for i, req := range requests {
		index := i + 1
		log := logger.With(
			logging.Int(logging.FieldSplitIndex, index),
			logging.String("start", req.Start),
			logging.String("end", req.End),
		)

		start, startErr := timecode.Parse(req.Start)
		end, endErr := timecode.Parse(req.End)
		if err := errors.Join(startErr, endErr); err != nil {
			log.Warn("skipping split with unparseable time", logging.Error(err))
			plan.Rejected++
			continue
		}
		if start >= end {
			log.Warn("skipping split: start time is not before end time")
			plan.Rejected++
			continue
		}
		if start < 0 {
			log.Info("clamping negative start time to 0", logging.Float64("start_seconds", start))
			start = 0
		}
		if end > durationSeconds {
			log.Info("clamping end time to video duration",
				logging.Float64("end_seconds", end),
				logging.Float64("duration_seconds", durationSeconds),
			)
			end = durationSeconds
		}
		if start >= end {
			log.Warn("skipping split: empty after clamping to video duration")
			plan.Rejected++
			continue
		}

		seg := Segment{
			SplitIndex:   index,
			Request:      req,
			StartSeconds: start,
			EndSeconds:   end,
		}
		if entry, ok := history.Find(req.Start, req.End); ok {
			seg.Duplicate = true
			seg.Existing = entry
			log.Info("split already produced; skipping", logging.String("file_url", entry.FileURL))
		}
		plan.Segments = append(plan.Segments, seg)
	}

	if len(plan.Segments) == 0 {
		return plan, ErrNoValidSegments
	}
	logger.Info("split plan ready",
		logging.Int("requested", len(requests)),
		logging.Int("pending", len(plan.Pending())),
		logging.Int("duplicates", plan.Duplicates()),
		logging.Int("rejected", plan.Rejected),
	)
	return plan, nil
}
