package testsupport

import (
	"testing"

	"vsplit/internal/config"
	"vsplit/internal/jobs"
)

// MustOpenLedger opens a jobs.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
