package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"vsplit/internal/services"
)

// SchemaVersion is the manifest layout written by this package. Manifests
// without a version field are read as version 1.
const SchemaVersion = 1

var (
	// ErrManifestUploadFailed reports that the object store returned no URL for the manifest.
	ErrManifestUploadFailed = fmt.Errorf("%w: manifest upload failed", services.ErrTransient)
	// ErrManifestLocked reports that another local run holds the manifest lock.
	ErrManifestLocked = fmt.Errorf("%w: manifest locked by another run", services.ErrTransient)
)

// Entry is one produced split. Start and End keep the raw request strings so
// later runs can recognise the same range.
type Entry struct {
	SplitIndex int    `json:"split_index"`
	FileURL    string `json:"file_url"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// Manifest describes prior split state for a source.
type Manifest struct {
	SchemaVersion int     `json:"schema_version"`
	VideoPath     *string `json:"video_path"`
	VideoSplits   []Entry `json:"video_splits"`
}

// Empty returns a manifest with no resolved input and no splits.
func Empty() Manifest {
	return Manifest{SchemaVersion: SchemaVersion, VideoSplits: []Entry{}}
}

// Merge records the resolved local input path unless one is already set.
func (m *Manifest) Merge(videoPath string) {
	if m.VideoPath != nil && *m.VideoPath != "" {
		return
	}
	if strings.TrimSpace(videoPath) == "" {
		return
	}
	p := videoPath
	m.VideoPath = &p
}

// ResolvedPath returns the recorded input path or "".
func (m Manifest) ResolvedPath() string {
	if m.VideoPath == nil {
		return ""
	}
	return *m.VideoPath
}

// ClearVideoPath forgets a recorded input path that no longer exists locally.
func (m *Manifest) ClearVideoPath() {
	m.VideoPath = nil
}

// Append inserts an entry and keeps VideoSplits sorted by split index.
func (m *Manifest) Append(entry Entry) {
	m.VideoSplits = append(m.VideoSplits, entry)
	sortEntries(m.VideoSplits)
}

// Find returns the first entry whose raw start and end strings equal the
// provided values. The comparison is literal: "30" and "0:30" differ.
func (m Manifest) Find(start, end string) (Entry, bool) {
	for _, entry := range m.VideoSplits {
		if entry.Start == start && entry.End == end {
			return entry, true
		}
	}
	return Entry{}, false
}

// Clone returns a deep copy.
func (m Manifest) Clone() Manifest {
	out := Manifest{SchemaVersion: m.SchemaVersion}
	if m.VideoPath != nil {
		p := *m.VideoPath
		out.VideoPath = &p
	}
	out.VideoSplits = append(make([]Entry, 0, len(m.VideoSplits)), m.VideoSplits...)
	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SplitIndex < entries[j].SplitIndex
	})
}

// ResolveURL derives the manifest location for a source by replacing the
// extension of its last path element with .json. Query strings and fragments
// are preserved. Plain filesystem paths are accepted too.
func ResolveURL(sourceURL string) (string, error) {
	trimmed := strings.TrimSpace(sourceURL)
	if trimmed == "" {
		return "", errors.New("resolve manifest url: empty source url")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || len(parsed.Scheme) == 1 {
		return replaceExt(trimmed, filepath.Ext(trimmed)), nil
	}
	if parsed.Path == "" || strings.HasSuffix(parsed.Path, "/") {
		return "", fmt.Errorf("resolve manifest url: %q has no file name", sourceURL)
	}
	parsed.Path = replaceExt(parsed.Path, path.Ext(parsed.Path))
	parsed.RawPath = ""
	return parsed.String(), nil
}

// Name returns the file name of a manifest URL, used for local temp files and
// locks.
func Name(manifestURL string) string {
	parsed, err := url.Parse(manifestURL)
	if err != nil || parsed.Scheme == "" || len(parsed.Scheme) == 1 {
		return filepath.Base(manifestURL)
	}
	return path.Base(parsed.Path)
}

func replaceExt(value, ext string) string {
	return strings.TrimSuffix(value, ext) + ".json"
}
