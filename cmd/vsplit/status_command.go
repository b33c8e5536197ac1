package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vsplit/internal/config"
	"vsplit/internal/deps"
	"vsplit/internal/jobs"
	"vsplit/internal/preflight"
)

type statusCheckJSON struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail,omitempty"`
	Version string `json:"version,omitempty"`
}

type statusJSON struct {
	Ready  bool              `json:"ready"`
	Checks []statusCheckJSON `json:"checks"`
	Jobs   map[string]int    `json:"jobs,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories, and storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			tools := preflight.CheckSystemDeps(cmd.Context(), cfg)
			paths := []preflight.Result{
				preflight.CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
				preflight.CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, cfg.Paths.MinFreeGiB),
				preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
			}
			storage := preflight.CheckStorage(cmd.Context(), cfg)
			counts := jobCounts(cmd.Context(), cfg)

			ready := storage.Passed && len(deps.Missing(tools)) == 0 && len(preflight.Failed(paths)) == 0

			if ctx.JSONMode() {
				out := statusJSON{Ready: ready, Jobs: counts}
				for _, tool := range tools {
					detail := tool.Detail
					if tool.Available {
						detail = tool.Path
					}
					out.Checks = append(out.Checks, statusCheckJSON{Name: tool.Name, Passed: tool.Available, Detail: detail, Version: tool.Version})
				}
				for _, result := range append(paths, storage) {
					out.Checks = append(out.Checks, statusCheckJSON{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
				}
				return writeJSON(cmd, out)
			}

			report := newStatusReport(cmd.OutOrStdout())
			report.section("tools")
			for _, tool := range tools {
				switch {
				case !tool.Available:
					report.check(tool.Name, false, tool.Detail)
				case tool.Version != "":
					report.check(tool.Name, true, fmt.Sprintf("%s (%s)", tool.Version, tool.Path))
				default:
					report.check(tool.Name, true, tool.Path)
				}
			}

			report.section("paths")
			for _, result := range paths {
				report.check(result.Name, result.Passed, result.Detail)
			}

			report.section("storage")
			report.line("Backend", stateInfo, cfg.Storage.Backend)
			report.check(storage.Name, storage.Passed, storage.Detail)

			report.section("job ledger")
			if counts == nil {
				report.line("Ledger", stateWarn, "Unavailable")
			} else {
				for _, status := range []jobs.Status{jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed} {
					report.line(titleCaser.String(string(status)), stateInfo, strconv.Itoa(counts[string(status)]))
				}
			}

			report.blank()
			report.check("Ready", ready, yesNo(ready))
			return report.writeTo(cmd.OutOrStdout())
		},
	}
}

// jobCounts tallies ledger rows by status. It returns nil when the ledger is
// disabled or cannot be read.
func jobCounts(ctx context.Context, cfg *config.Config) map[string]int {
	if !cfg.Jobs.Enabled {
		return nil
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return nil
	}
	defer store.Close()

	records, err := store.List(ctx, 0)
	if err != nil {
		return nil
	}
	counts := map[string]int{
		string(jobs.StatusRunning):   0,
		string(jobs.StatusCompleted): 0,
		string(jobs.StatusFailed):    0,
	}
	for _, record := range records {
		counts[string(record.Status)]++
	}
	return counts
}
