package testsupport

import (
	"context"
	"testing"

	"scott/internal/config"
	"scott/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
// The demo rows are loaded when the config asks for them.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	if cfg.Database.Seed {
		if _, err := store.Seed(context.Background()); err != nil {
			t.Fatalf("store.Seed: %v", err)
		}
	}
	return store
}
