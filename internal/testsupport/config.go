package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"vsplit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PublishDir = filepath.Join(base, "published")
	cfgVal.Paths.MinFreeGiB = 0
	cfgVal.Jobs.Path = filepath.Join(base, "jobs.db")
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStorageBaseURL sets the public URL prefix of the storage backend.
func WithStorageBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.BaseURL = url
	}
}

// WithJobsDisabled turns the job ledger off.
func WithJobsDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.Enabled = false
	}
}

// WithStubbedTools writes ffmpeg and ffprobe stand-ins under the config's
// base directory and points the tool settings at them. The ffprobe stub
// reports durationSeconds; the ffmpeg stub writes a small file at the last
// non-flag argument, which is the output path, and answers -version probes.
func WithStubbedTools(durationSeconds float64) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		ffmpeg := "#!/bin/sh\n" +
			"if [ \"$2\" = \"-version\" ]; then echo 'ffmpeg version 6.1-test'; exit 0; fi\n" +
			"out=''; for a; do case \"$a\" in -*) ;; *) out=\"$a\" ;; esac; done\n" +
			"printf 'segment' > \"$out\"\n"
		ffprobe := "#!/bin/sh\n" +
			"if [ \"$2\" = \"-version\" ]; then echo 'ffprobe version 6.1-test'; exit 0; fi\n" +
			fmt.Sprintf("echo '{\"streams\":[],\"format\":{\"duration\":\"%g\"}}'\n", durationSeconds)

		b.cfg.Tools.FFmpeg = WriteScript(b.t, filepath.Join(binDir, "ffmpeg"), ffmpeg)
		b.cfg.Tools.FFprobe = WriteScript(b.t, filepath.Join(binDir, "ffprobe"), ffprobe)
	}
}

// WithStubbedBinaries writes no-op executables for the provided names and
// prepends their directory to PATH for the lifetime of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "path-bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "#!/bin/sh\nexit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
