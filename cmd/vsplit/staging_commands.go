package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vsplit/internal/config"
	"vsplit/internal/jobs"
	"vsplit/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage the staging directory",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging usage per job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			usage, err := staging.ListJobs(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging entries: %w", err)
			}

			var totalSize int64
			for _, job := range usage {
				totalSize += job.Size
			}

			if ctx.JSONMode() {
				if usage == nil {
					usage = []staging.JobUsage{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"jobs":             usage,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(usage) == 0 {
				fmt.Fprintln(out, "No staging entries found")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)
			rows := make([][]string, 0, len(usage))
			for _, job := range usage {
				id := job.JobID
				if id == "" {
					id = "(other)"
				}
				rows = append(rows, []string{
					id,
					fmt.Sprintf("%d", len(job.Entries)),
					formatDuration(time.Since(job.ModTime).Truncate(time.Minute)),
					formatBytes(job.Size),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Job", "Entries", "Age", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "\nTotal: %d jobs, %s\n", len(usage), formatBytes(totalSize))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var cleanAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging entries",
		Long: `Remove downloaded inputs, manifest workdirs, and leftover segments
from the staging directory.

By default only entries untouched for --older-than are removed, and entries
belonging to jobs the ledger reports as running are kept. Use --all to
remove everything except the lock directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			maxAge := olderThan
			var active map[string]struct{}
			if cleanAll {
				maxAge = 0
			} else {
				active, err = runningJobIDs(cmd.Context(), cfg)
				if err != nil {
					return err
				}
			}

			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, active, logger)
			if ctx.JSONMode() {
				return writeStagingCleanJSON(cmd, result)
			}
			return printStagingCleanResult(cmd, result)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Only remove entries last modified before this age")
	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all staging entries regardless of age or job state")

	return cmd
}

// runningJobIDs returns the ids the ledger reports as running. A disabled
// ledger yields no ids.
func runningJobIDs(ctx context.Context, cfg *config.Config) (map[string]struct{}, error) {
	if !cfg.Jobs.Enabled {
		return nil, nil
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	records, err := store.List(ctx, 0, jobs.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running jobs: %w", err)
	}
	ids := make(map[string]struct{}, len(records))
	for _, record := range records {
		ids[record.ID] = struct{}{}
	}
	return ids, nil
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanStaleResult) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "No staging entries to clean")
		return nil
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d staging entries, %d errors\n", len(result.Removed), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d staging entries\n", len(result.Removed))
	return nil
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.CleanStaleResult) error {
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
	}
	removed := result.Removed
	if removed == nil {
		removed = []string{}
	}
	return writeJSON(cmd, map[string]any{
		"removed": removed,
		"errors":  errs,
	})
}
