package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vsplit/internal/logging"
	"vsplit/internal/testsupport"
)

func writeSource(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	path := filepath.Join(env.cfg.Paths.PublishDir, "talk.mp4")
	testsupport.WriteFile(t, path, 4096)
	return "file://" + path
}

func decodeSplitJSON(t *testing.T, out string) splitResultJSON {
	t.Helper()
	var result splitResultJSON
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode split output %q: %v", out, err)
	}
	return result
}

func TestSplitCommandPublishesAndReuses(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env)

	out, _, err := runCLI(t, []string{"split", source, "--range", "0-30", "--range", "1:00-1:30", "--job-id", "first", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	first := decodeSplitJSON(t, out)
	if first.JobID != "first" || first.Produced != 2 || len(first.VideoSplits) != 2 {
		t.Fatalf("unexpected first run: %+v", first)
	}
	for _, entry := range first.VideoSplits {
		if !strings.HasPrefix(entry.FileURL, "file://") {
			t.Fatalf("expected file url, got %q", entry.FileURL)
		}
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.PublishDir, "talk.json")); err != nil {
		t.Fatalf("expected manifest next to source: %v", err)
	}
	if first.InputPath == "" {
		t.Fatal("expected input to be kept by default")
	}

	out, _, err = runCLI(t, []string{"split", source, "--range", "0-30", "--job-id", "second", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("second split: %v", err)
	}
	second := decodeSplitJSON(t, out)
	if second.Produced != 0 || second.Skipped != 1 || len(second.VideoSplits) != 2 {
		t.Fatalf("unexpected second run: %+v", second)
	}
	if second.InputPath != first.InputPath {
		t.Fatalf("expected recorded input reused, got %q want %q", second.InputPath, first.InputPath)
	}

	out, _, err = runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "first")
	requireContains(t, out, "second")
	requireContains(t, out, "completed")

	out, _, err = runCLI(t, []string{"manifest", "show", source}, env.configPath)
	if err != nil {
		t.Fatalf("manifest show: %v", err)
	}
	requireContains(t, out, "Schema version: 1")
	requireContains(t, out, "1:00")
}

func TestSplitCommandSkipsMalformedRange(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env)

	out, _, err := runCLI(t, []string{"split", source, "--range", "30", "--range", "0-10", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	result := decodeSplitJSON(t, out)
	if result.Produced != 1 || result.Rejected != 1 {
		t.Fatalf("expected one produced and one rejected, got %+v", result)
	}
	if len(result.VideoSplits) != 1 || result.VideoSplits[0].SplitIndex != 2 {
		t.Fatalf("expected only split 2 to be published, got %+v", result.VideoSplits)
	}
}

func TestSplitCommandClampsNegativeStart(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env)

	out, _, err := runCLI(t, []string{"split", source, "--range=-5-50", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	result := decodeSplitJSON(t, out)
	if result.Produced != 1 || result.Rejected != 0 || len(result.VideoSplits) != 1 {
		t.Fatalf("expected the negative start to be clamped, got %+v", result)
	}
	entry := result.VideoSplits[0]
	if entry.Start != "-5" || entry.End != "50" {
		t.Fatalf("expected raw range recorded, got %+v", entry)
	}
}

func TestSplitCommandNoValidSegments(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env)

	_, _, err := runCLI(t, []string{"split", source, "--range", "50-10", "--job-id", "bad"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no valid split segments") {
		t.Fatalf("expected no-valid-segments error, got %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "show", "bad"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "failed")
	requireContains(t, out, "validation")
}

func TestManifestURLCommand(t *testing.T) {
	out, _, err := runCLI(t, []string{"manifest", "url", "https://media.example/talks/keynote.mp4?sig=1"}, "")
	if err != nil {
		t.Fatalf("manifest url: %v", err)
	}
	requireContains(t, out, "https://media.example/talks/keynote.json?sig=1")
}

func TestStatusCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status statusJSON
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Ready {
		t.Fatalf("expected ready status, got %+v", status)
	}
	found := false
	for _, check := range status.Checks {
		if check.Name == "FFmpeg" {
			found = true
			if check.Version != "6.1-test" {
				t.Fatalf("unexpected ffmpeg version %q", check.Version)
			}
		}
	}
	if !found {
		t.Fatalf("ffmpeg check missing: %+v", status.Checks)
	}
}

func TestStatusCommandText(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Tools ==")
	requireContains(t, out, "== Job Ledger ==")
	requireContains(t, out, "Ready:")
}

func TestStagingCleanAll(t *testing.T) {
	env := setupCLITestEnv(t)
	leftover := filepath.Join(env.cfg.Paths.StagingDir, "old_split_1.mp4")
	testsupport.WriteFile(t, leftover, 10)

	out, _, err := runCLI(t, []string{"staging", "clean", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 staging entries")
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Fatalf("expected leftover removed, stat err=%v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	env := setupCLITestEnv(t)
	data := "[storage]\ntoken = \"secret\"\n"
	path := filepath.Join(env.baseDir, "token.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"config", "show"}, path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "secret") {
		t.Fatalf("token leaked: %q", out)
	}
	requireContains(t, out, "<redacted>")
}

func TestLogsCommandFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	path := logging.LogFilePath(env.cfg.Paths.LogDir, timeNow())
	content := "a INFO splitter: stage job_id=one\nb INFO splitter: stage job_id=two\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "--job", "two"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "job_id=one") {
		t.Fatalf("unexpected line for other job: %q", out)
	}
	requireContains(t, out, "job_id=two")
}
