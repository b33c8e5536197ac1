package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// patternReader yields the same byte forever.
type patternReader byte

func (p patternReader) Read(b []byte) (int, error) {
	copy(b, bytes.Repeat([]byte{byte(p)}, len(b)))
	return len(b), nil
}

func mkdirParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}

// WriteFile writes size bytes of filler to path, creating parents. Sizes
// below one still produce a one-byte file so existence checks pass.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	mkdirParent(t, path)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if _, err := io.CopyN(f, patternReader('B'), max(size, 1)); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()
	mkdirParent(t, path)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}
