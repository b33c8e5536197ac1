package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vsplit/internal/fetch"
	"vsplit/internal/manifest"
	"vsplit/internal/objectstore"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect split manifests",
	}
	manifestCmd.AddCommand(newManifestURLCommand(ctx))
	manifestCmd.AddCommand(newManifestShowCommand(ctx))
	return manifestCmd
}

func newManifestURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "url <source-url>",
		Short:       "Print the manifest location for a source",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestURL, err := manifest.ResolveURL(args[0])
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]string{"source_url": args[0], "manifest_url": manifestURL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), manifestURL)
			return nil
		},
	}
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <source-url>",
		Short: "Fetch and display the manifest for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			manifestURL, err := manifest.ResolveURL(args[0])
			if err != nil {
				return err
			}

			store, err := objectstore.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			client := fetch.New(cfg.Fetch.UserAgent, time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second, logger)

			workDir, err := os.MkdirTemp(cfg.Paths.StagingDir, "manifest-show-")
			if err != nil {
				return fmt.Errorf("create manifest workdir: %w", err)
			}
			defer os.RemoveAll(workDir)

			m := manifest.NewStore(client, store, logger).Load(cmd.Context(), manifestURL, workDir)

			if ctx.JSONMode() {
				return writeJSON(cmd, m)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest: %s\n", manifestURL)
			fmt.Fprintf(out, "Schema version: %d\n", m.SchemaVersion)
			if path := m.ResolvedPath(); path != "" {
				fmt.Fprintf(out, "Local input: %s\n", path)
			}
			if len(m.VideoSplits) == 0 {
				fmt.Fprintln(out, "No splits recorded")
				return nil
			}
			rows := make([][]string, 0, len(m.VideoSplits))
			for _, entry := range m.VideoSplits {
				rows = append(rows, []string{strconv.Itoa(entry.SplitIndex), entry.Start, entry.End, entry.FileURL})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "URL"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
