package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Storage backend identifiers.
const (
	StorageBackendLocal = "local"
	StorageBackendHTTP  = "http"
)

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	PublishDir string `toml:"publish_dir"`
	MinFreeGiB int    `toml:"min_free_gib"`
}

// Encoding contains the default encoder settings applied when a split request
// does not override them.
type Encoding struct {
	VideoCodec   string `toml:"video_codec"`
	VideoPreset  string `toml:"video_preset"`
	VideoCRF     int    `toml:"video_crf"`
	AudioCodec   string `toml:"audio_codec"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// Storage selects where split artifacts and manifests are published.
//
// The local backend copies files into Paths.PublishDir and builds URLs from
// BaseURL (or file:// URLs when BaseURL is empty). The http backend PUTs files
// to BaseURL.
type Storage struct {
	Backend        string `toml:"backend"`
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Fetch contains settings for source and manifest downloads.
type Fetch struct {
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Tools names the external binaries vsplit invokes.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Jobs controls the local job ledger.
type Jobs struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for vsplit.
//
// Configuration sections by subsystem:
//   - Paths: staging, log, and publish directories
//   - Encoding: default codec/preset/CRF/bitrate for splits
//   - Storage: object store backend for split artifacts and manifests
//   - Fetch: source download settings
//   - Tools: ffmpeg/ffprobe binaries
//   - Jobs: SQLite job ledger
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Encoding Encoding `toml:"encoding"`
	Storage  Storage  `toml:"storage"`
	Fetch    Fetch    `toml:"fetch"`
	Tools    Tools    `toml:"tools"`
	Jobs     Jobs     `toml:"jobs"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vsplit/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// resolveConfigPath returns the file Load should read and whether it exists.
// An explicit path wins; otherwise the user config is tried, then vsplit.toml
// in the working directory. When nothing is found the user path is reported.
func resolveConfigPath(explicit string) (string, bool, error) {
	var candidates []string
	if explicit != "" {
		candidates = []string{explicit}
	} else {
		candidates = []string{"~/.config/vsplit/config.toml", "vsplit.toml"}
	}

	var first string
	for _, candidate := range candidates {
		resolved, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if first == "" {
			first = resolved
		}
		info, err := os.Stat(resolved)
		switch {
		case err == nil && !info.IsDir():
			return resolved, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist) && explicit != "":
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return first, false, nil
}

// EnsureDirectories creates the directories a split run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageBackendLocal {
		dirs = append(dirs, c.Paths.PublishDir)
	}
	if c.Jobs.Enabled && c.Jobs.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Jobs.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for segment extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFmpeg); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for duration probing.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFprobe); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// ExpandPath resolves a leading ~ to the home directory and returns the
// cleaned absolute path. An empty value stays empty.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Marshal renders the effective configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	redacted := *c
	if redacted.Storage.Token != "" {
		redacted.Storage.Token = "<redacted>"
	}
	return toml.Marshal(redacted)
}
