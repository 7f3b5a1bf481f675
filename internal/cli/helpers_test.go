package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/provq/provq/internal/fixture"
	"github.com/provq/provq/internal/store"
)

// demoDB creates a database file seeded with the demo graph and
// returns its path.
func demoDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provq.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	_, err = fixture.SeedDemo(context.Background(), st)
	require.NoError(t, err)
	return path
}

// writeTestFile writes content under a fresh temp dir and returns the
// full path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs a command with args and returns combined output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// intValuesDef is a definition projecting each stored integer's id and
// value, ordered by id. The demo graph stores 5, 7, 12 and 60.
const intValuesDef = `
name: int-values
query:
  path:
    - entity_type: data.core.int.Int.
      tag: ints
  project:
    ints: [id, attributes.value]
  order_by:
    - ints: [id]
`
