package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provq/provq/internal/builder"
	"github.com/provq/provq/internal/store"
)

const smallGraph = `
users:
  - email: carol@example.org
nodes:
  - key: a
    type: data.core.str.Str.
    label: imported
    attributes: {value: hello}
`

func TestImportLoadsGraph(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provq.db")
	fixturePath := writeTestFile(t, "graph.yaml", smallGraph)

	rootOpts := &RootOptions{Format: "text"}
	out, err := execute(t, NewImportCommand(rootOpts), fixturePath, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 node(s)")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	n, err := builder.New(st).
		Append(builder.AppendSpec{TypeString: "data.core.str.Str."}).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestImportBadYAML(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provq.db")
	fixturePath := writeTestFile(t, "graph.yaml", "nodes: [unclosed")

	rootOpts := &RootOptions{Format: "text"}
	_, err := execute(t, NewImportCommand(rootOpts), fixturePath, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestImportMissingFixture(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provq.db")

	rootOpts := &RootOptions{Format: "text"}
	_, err := execute(t, NewImportCommand(rootOpts), filepath.Join(t.TempDir(), "absent.yaml"), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSeedCreatesDemoGraph(t *testing.T) {
	db := filepath.Join(t.TempDir(), "provq.db")

	rootOpts := &RootOptions{Format: "text"}
	out, err := execute(t, NewSeedCommand(rootOpts), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded demo graph")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	n, err := builder.New(st).
		Append(builder.AppendSpec{TypeString: "node.Node."}).
		Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}
