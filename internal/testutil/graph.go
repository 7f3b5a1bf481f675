package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/provq/provq/internal/fixture"
	"github.com/provq/provq/internal/store"
)

// OpenStore opens a store on a fresh temporary database and closes it
// when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedDemo loads the built-in demo graph into s and returns the id
// table.
func SeedDemo(t *testing.T, s *store.Store) *fixture.Graph {
	t.Helper()
	g, err := fixture.SeedDemo(context.Background(), s)
	if err != nil {
		t.Fatalf("SeedDemo() failed: %v", err)
	}
	return g
}

// DemoStore opens a fresh store with the demo graph loaded.
func DemoStore(t *testing.T) (*store.Store, *fixture.Graph) {
	t.Helper()
	s := OpenStore(t)
	return s, SeedDemo(t, s)
}
