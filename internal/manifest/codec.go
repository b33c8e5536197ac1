package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Decode parses manifest JSON. It rejects payloads that are not an object,
// whose video_splits is not a list, whose entries have the wrong shape, or
// that declare a schema version newer than SchemaVersion.
func Decode(data []byte) (Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Manifest{}, errors.New("manifest is not a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}

	m := Empty()

	if raw, ok := fields["schema_version"]; ok && !isNull(raw) {
		var version int
		if err := json.Unmarshal(raw, &version); err != nil {
			return Manifest{}, fmt.Errorf("decode schema_version: %w", err)
		}
		if version < 1 || version > SchemaVersion {
			return Manifest{}, fmt.Errorf("unsupported manifest schema_version %d", version)
		}
		m.SchemaVersion = version
	}

	if raw, ok := fields["video_path"]; ok && !isNull(raw) {
		var videoPath string
		if err := json.Unmarshal(raw, &videoPath); err != nil {
			return Manifest{}, fmt.Errorf("decode video_path: %w", err)
		}
		if videoPath != "" {
			m.VideoPath = &videoPath
		}
	}

	if raw, ok := fields["video_splits"]; ok && !isNull(raw) {
		if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '[' {
			return Manifest{}, errors.New("video_splits is not a list")
		}
		var entries []Entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return Manifest{}, fmt.Errorf("decode video_splits: %w", err)
		}
		m.VideoSplits = append(m.VideoSplits, entries...)
		sortEntries(m.VideoSplits)
	}

	return m, nil
}

// Encode renders the manifest as indented JSON with entries sorted by split
// index. The current SchemaVersion is always written.
func Encode(m Manifest) ([]byte, error) {
	out := m.Clone()
	out.SchemaVersion = SchemaVersion
	sortEntries(out.VideoSplits)
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
