// Package staging inspects and prunes the scratch directory split runs write
// into.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"vsplit/internal/logging"
)

// LocksDir is the staging subdirectory holding manifest lock files. It is
// never cleaned.
const LocksDir = "locks"

var jobEntryPattern = regexp.MustCompile(`^(.+?)_(input|manifest|split_\d+(\.[^.]+)?)$`)

// JobIDFromName extracts the job id from a staging entry name such as
// "<job>_input", "<job>_manifest", or "<job>_split_3.mp4".
func JobIDFromName(name string) (string, bool) {
	m := jobEntryPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CleanStaleResult contains the outcome of a stale entry cleanup.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes staging entries, files or directories, last modified
// before maxAge ago. A maxAge <= 0 removes every entry. Entries in active are
// skipped by job id.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, active map[string]struct{}, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	logger = logging.NewComponentLogger(logger, "staging")

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.Name() == LocksDir {
			continue
		}
		if id, ok := JobIDFromName(entry.Name()); ok {
			if _, running := active[id]; running {
				continue
			}
		}

		path := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if maxAge > 0 && !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logger.Warn("failed to remove stale staging entry",
				logging.String("path", path),
				logging.Error(err),
				logging.Alert("staging_cleanup_failed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed stale staging entry",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
		)
	}
	return result
}

// JobUsage summarises the staging entries belonging to one job.
type JobUsage struct {
	JobID   string    `json:"job_id"`
	Entries []string  `json:"entries"`
	Size    int64     `json:"size_bytes"`
	ModTime time.Time `json:"mod_time"`
}

// ListJobs groups staging entries by job id, most recently modified first.
// Entries that do not follow the job naming scheme are reported under "".
func ListJobs(stagingDir string) ([]JobUsage, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	byID := map[string]*JobUsage{}
	for _, entry := range entries {
		if entry.Name() == LocksDir {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		id, _ := JobIDFromName(entry.Name())
		usage, ok := byID[id]
		if !ok {
			usage = &JobUsage{JobID: id}
			byID[id] = usage
		}
		path := filepath.Join(stagingDir, entry.Name())
		usage.Entries = append(usage.Entries, entry.Name())
		size, _ := pathSize(path)
		usage.Size += size
		if info.ModTime().After(usage.ModTime) {
			usage.ModTime = info.ModTime()
		}
	}

	jobs := make([]JobUsage, 0, len(byID))
	for _, usage := range byID {
		jobs = append(jobs, *usage)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].ModTime.Equal(jobs[j].ModTime) {
			return jobs[i].ModTime.After(jobs[j].ModTime)
		}
		return jobs[i].JobID < jobs[j].JobID
	})
	return jobs, nil
}

// pathSize calculates the total size of a file or directory tree.
func pathSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
