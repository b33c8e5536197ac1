package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vsplit/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the split job ledger",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsPruneCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent split jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]jobs.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, err := parseJobStatus(raw)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit, statuses...)
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				out := make([]jobJSON, 0, len(records))
				for _, record := range records {
					out = append(out, toJobJSON(record))
				}
				return writeJSON(cmd, out)
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.ID,
					string(record.Status),
					fmt.Sprintf("%d/%d", record.Produced+record.Skipped, record.Requested),
					record.CreatedAt.Local().Format("2006-01-02 15:04"),
					truncate(record.SourceURL, 60),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Done", "Started", "Source"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 for all)")
	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (running, completed, failed)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one split job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("job %s not found", args[0])
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, toJobJSON(record))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %s\n", record.ID)
			fmt.Fprintf(out, "Status:    %s\n", record.Status)
			fmt.Fprintf(out, "Source:    %s\n", record.SourceURL)
			fmt.Fprintf(out, "Manifest:  %s\n", record.ManifestURL)
			fmt.Fprintf(out, "Requested: %d\n", record.Requested)
			fmt.Fprintf(out, "Produced:  %d\n", record.Produced)
			fmt.Fprintf(out, "Reused:    %d\n", record.Skipped)
			fmt.Fprintf(out, "Rejected:  %d\n", record.Rejected)
			fmt.Fprintf(out, "Started:   %s\n", record.CreatedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "Elapsed:   %s\n", record.Elapsed().Round(time.Second))
			if record.Status == jobs.StatusFailed {
				fmt.Fprintf(out, "Failed in: %s\n", record.FailedStage)
				fmt.Fprintf(out, "Class:     %s\n", record.ErrorClass)
				fmt.Fprintf(out, "Error:     %s\n", record.ErrorMessage)
			}
			return nil
		},
	}
}

func newJobsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished jobs older than a given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), timeNow().Add(-olderThan))
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]int64{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of the oldest job to keep")
	return cmd
}

func parseJobStatus(raw string) (jobs.Status, error) {
	status := jobs.Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

type jobJSON struct {
	ID           string    `json:"id"`
	SourceURL    string    `json:"source_url"`
	ManifestURL  string    `json:"manifest_url"`
	Status       string    `json:"status"`
	Requested    int       `json:"requested"`
	Produced     int       `json:"produced"`
	Skipped      int       `json:"skipped"`
	Rejected     int       `json:"rejected"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	ErrorClass   string    `json:"error_class,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toJobJSON(record *jobs.Record) jobJSON {
	return jobJSON{
		ID:           record.ID,
		SourceURL:    record.SourceURL,
		ManifestURL:  record.ManifestURL,
		Status:       string(record.Status),
		Requested:    record.Requested,
		Produced:     record.Produced,
		Skipped:      record.Skipped,
		Rejected:     record.Rejected,
		FailedStage:  record.FailedStage,
		ErrorClass:   record.ErrorClass,
		ErrorMessage: record.ErrorMessage,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}
