package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const dailyLogPattern = "vsplit-*.log"

// CleanupOldLogs removes daily log files in dir last modified more than
// retentionDays ago and returns their paths. Today's file is never removed
// and retentionDays <= 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, dir string, retentionDays int) []string {
	if retentionDays <= 0 || dir == "" {
		return nil
	}
	if logger == nil {
		logger = NewNop()
	}
	now := time.Now()
	cutoff := now.AddDate(0, 0, -retentionDays)
	today := LogFilePath(dir, now)

	matches, err := filepath.Glob(filepath.Join(dir, dailyLogPattern))
	if err != nil {
		return nil
	}
	var removed []string
	for _, path := range matches {
		if path == today {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("log retention remove failed",
				String("path", path),
				Error(err),
				Alert("log_retention_failed"),
			)
			continue
		}
		logger.Debug("log pruned", String("path", path))
		removed = append(removed, path)
	}
	return removed
}
