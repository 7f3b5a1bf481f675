package fixture

import (
	"context"
	_ "embed"

	"github.com/provq/provq/internal/store"
)

// demoYAML is a small arithmetic workflow: two integers added, the sum
// multiplied, orchestrated by a workchain, with groups, comments, logs
// and authinfo records attached. Every join keyword has something to
// match against it.
//
//go:embed demo.yaml
var demoYAML []byte

// SeedDemo loads the built-in demo graph. Seeding twice is idempotent
// apart from the random node uuids making the second pass insert
// duplicate nodes; call it on a fresh database.
func SeedDemo(ctx context.Context, st *store.Store) (*Graph, error) {
	return Load(ctx, st, demoYAML)
}
