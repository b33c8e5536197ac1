package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vsplit/internal/config"
	"vsplit/internal/fetch"
	"vsplit/internal/jobs"
	"vsplit/internal/media"
	"vsplit/internal/objectstore"
	"vsplit/internal/planner"
	"vsplit/internal/preflight"
	"vsplit/internal/split"
)

type splitFlags struct {
	ranges        []string
	jobID         string
	videoCodec    string
	videoPreset   string
	videoCRF      int
	audioCodec    string
	audioBitrate  string
	removeInput   bool
	skipPreflight bool
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	flags := &splitFlags{videoCRF: -1}

	cmd := &cobra.Command{
		Use:   "split <source-url>",
		Short: "Extract time ranges from a video and publish them",
		Long: `Extract one or more time ranges from the video at <source-url>.

Each --range is START-END or START..END, where both ends are seconds ("90") or
[HH:]MM:SS[.fff] timecodes ("1:30"). Ranges already recorded in the
source's manifest are returned without re-encoding. Out-of-bounds ranges
are clamped to the video; inverted or unparseable ranges are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			requests := make([]planner.Request, 0, len(flags.ranges))
			for _, raw := range flags.ranges {
				requests = append(requests, parseRange(raw))
			}

			if !flags.skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					parts := make([]string, 0, len(failed))
					for _, result := range failed {
						parts = append(parts, fmt.Sprintf("%s: %s", result.Name, result.Detail))
					}
					return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
				}
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var ledger *jobs.Store
			if cfg.Jobs.Enabled {
				ledger, err = jobs.Open(cfg)
				if err != nil {
					return err
				}
				defer ledger.Close()
			}

			splitter, err := buildSplitter(cfg, ledger, logger)
			if err != nil {
				return err
			}

			result, err := splitter.Run(runCtx, split.Request{
				SourceURL:   args[0],
				Splits:      requests,
				JobID:       strings.TrimSpace(flags.jobID),
				Encoding:    flags.encoding(cfg),
				RemoveInput: flags.removeInput,
			})
			if err != nil {
				if errors.Is(err, planner.ErrNoValidSegments) {
					return fmt.Errorf("%w (check --range values)", err)
				}
				return err
			}

			if flags.removeInput {
				result.InputPath = ""
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, splitResultToJSON(result))
			}
			printSplitResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&flags.ranges, "range", "r", nil, "Time range START-END or START..END to extract (repeatable)")
	cmd.Flags().StringVar(&flags.jobID, "job-id", "", "Job identifier for temp files and the ledger (default: random)")
	cmd.Flags().StringVar(&flags.videoCodec, "video-codec", "", "Video codec (default from config)")
	cmd.Flags().StringVar(&flags.videoPreset, "preset", "", "Encoder preset (default from config)")
	cmd.Flags().IntVar(&flags.videoCRF, "crf", -1, "Constant rate factor 0-51 (default from config)")
	cmd.Flags().StringVar(&flags.audioCodec, "audio-codec", "", "Audio codec (default from config)")
	cmd.Flags().StringVar(&flags.audioBitrate, "audio-bitrate", "", "Audio bitrate (default from config)")
	cmd.Flags().BoolVar(&flags.removeInput, "remove-input", false, "Delete the downloaded source instead of keeping it for later runs")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip dependency and storage checks")
	_ = cmd.MarkFlagRequired("range")

	return cmd
}

// encoding layers command-line overrides on the configured defaults.
func (f *splitFlags) encoding(cfg *config.Config) split.Encoding {
	enc := split.Encoding{
		VideoCodec:   cfg.Encoding.VideoCodec,
		VideoPreset:  cfg.Encoding.VideoPreset,
		VideoCRF:     cfg.Encoding.VideoCRF,
		AudioCodec:   cfg.Encoding.AudioCodec,
		AudioBitrate: cfg.Encoding.AudioBitrate,
	}
	if v := strings.TrimSpace(f.videoCodec); v != "" {
		enc.VideoCodec = v
	}
	if v := strings.TrimSpace(f.videoPreset); v != "" {
		enc.VideoPreset = v
	}
	if f.videoCRF >= 0 {
		enc.VideoCRF = f.videoCRF
	}
	if v := strings.TrimSpace(f.audioCodec); v != "" {
		enc.AudioCodec = v
	}
	if v := strings.TrimSpace(f.audioBitrate); v != "" {
		enc.AudioBitrate = v
	}
	return enc
}

func buildSplitter(cfg *config.Config, ledger *jobs.Store, logger *slog.Logger) (*split.Splitter, error) {
	store, err := objectstore.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	client := fetch.New(cfg.Fetch.UserAgent, time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second, logger)
	tool := media.NewTool(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger)

	var opts []split.Option
	if ledger != nil {
		opts = append(opts, split.WithLedger(ledger))
	}
	return split.New(cfg.Paths.StagingDir, client, store, tool, logger, opts...), nil
}

// parseRange splits a --range value into its two ends. START..END is split
// at the first "..". Otherwise the separator is the first "-" after the
// opening character that does not follow an exponent marker, so "-5-50"
// and "1e-3-5" both work. A value with no separator becomes a request with
// an empty end; the planner rejects it and counts it like any other bad
// range.
func parseRange(raw string) planner.Request {
	value := strings.TrimSpace(raw)
	if start, end, ok := strings.Cut(value, ".."); ok {
		return planner.Request{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
	}
	for i := 1; i < len(value); i++ {
		if value[i] != '-' || value[i-1] == 'e' || value[i-1] == 'E' {
			continue
		}
		return planner.Request{
			Start: strings.TrimSpace(value[:i]),
			End:   strings.TrimSpace(value[i+1:]),
		}
	}
	return planner.Request{Start: value}
}

type splitEntryJSON struct {
	SplitIndex int    `json:"split_index"`
	Start      string `json:"start"`
	End        string `json:"end"`
	FileURL    string `json:"file_url"`
}

type splitResultJSON struct {
	JobID       string           `json:"job_id"`
	ManifestURL string           `json:"manifest_url"`
	InputPath   string           `json:"input_path,omitempty"`
	Produced    int              `json:"produced"`
	Skipped     int              `json:"skipped"`
	Rejected    int              `json:"rejected"`
	VideoSplits []splitEntryJSON `json:"video_splits"`
}

func splitResultToJSON(result split.Result) splitResultJSON {
	out := splitResultJSON{
		JobID:       result.JobID,
		ManifestURL: result.ManifestURL,
		InputPath:   result.InputPath,
		Produced:    result.Produced,
		Skipped:     result.Skipped,
		Rejected:    result.Rejected,
		VideoSplits: make([]splitEntryJSON, 0, len(result.VideoSplits)),
	}
	for _, entry := range result.VideoSplits {
		out.VideoSplits = append(out.VideoSplits, splitEntryJSON{
			SplitIndex: entry.SplitIndex,
			Start:      entry.Start,
			End:        entry.End,
			FileURL:    entry.FileURL,
		})
	}
	return out
}

func printSplitResult(cmd *cobra.Command, result split.Result) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(result.VideoSplits))
	for _, entry := range result.VideoSplits {
		rows = append(rows, []string{strconv.Itoa(entry.SplitIndex), entry.Start, entry.End, entry.FileURL})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Start", "End", "URL"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
		))
	}
	fmt.Fprintf(out, "Job %s: %d produced, %d already published, %d rejected\n", result.JobID, result.Produced, result.Skipped, result.Rejected)
	if result.InputPath != "" {
		fmt.Fprintf(out, "Input kept at %s\n", result.InputPath)
	}
	fmt.Fprintf(out, "Manifest: %s\n", result.ManifestURL)
}
