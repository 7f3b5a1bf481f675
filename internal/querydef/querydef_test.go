package querydef

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provq/provq/internal/testutil"
)

const validYAML = `
name: int-values
description: every stored integer with its value
query:
  path:
    - entity_type: data.core.int.Int.
      tag: ints
  project:
    ints: [id, attributes.value]
  order_by:
    - ints: [id]
`

func writeDef(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	def, err := Load(writeDef(t, "int-values.yaml", validYAML))
	require.NoError(t, err)
	assert.Equal(t, "int-values", def.Name)
	assert.Equal(t, "every stored integer with its value", def.Description)
	require.Contains(t, def.Query, "path")
}

func TestLoadJSON(t *testing.T) {
	content := `{
  "name": "calc-nodes",
  "query": {
    "path": [
      {"entity_type": "process.calculation.calcjob.CalcJobNode.", "tag": "calc"}
    ],
    "limit": 10
  }
}`
	def, err := Load(writeDef(t, "calc-nodes.json", content))
	require.NoError(t, err)
	assert.Equal(t, "calc-nodes", def.Name)
}

func TestLoadCUE(t *testing.T) {
	content := `
name:        "provenance-pair"
description: "calculations with their created outputs"
query: {
	path: [
		{entity_type: "process.calculation.calcjob.CalcJobNode.", tag: "calc"},
		{
			entity_type:     "data.Data."
			tag:             "out"
			joining_keyword: "with_incoming"
			joining_value:   "calc"
			edge_tag:        "calc--out"
		},
	]
	project: {out: ["id"], "calc--out": ["label"]}
}
`
	def, err := Load(writeDef(t, "provenance-pair.cue", content))
	require.NoError(t, err)
	assert.Equal(t, "provenance-pair", def.Name)
}

func TestLoadSchemaErrors(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
		code    string
		msg     string
	}{
		{
			name: "bad join keyword",
			file: "bad.yaml",
			content: `
name: bad
query:
  path:
    - {entity_type: node.Node., tag: a}
    - {entity_type: node.Node., tag: b, joining_keyword: with_sideways, joining_value: a, edge_tag: a--b}
`,
			code: ErrCodeSchema,
			msg:  "joining_keyword",
		},
		{
			name: "unknown top-level key",
			file: "bad.yaml",
			content: `
name: bad
queryy:
  path: []
`,
			code: ErrCodeSchema,
		},
		{
			name: "missing name",
			file: "bad.yaml",
			content: `
query:
  path:
    - {entity_type: node.Node., tag: a}
`,
			code: ErrCodeSchema,
			msg:  "name",
		},
		{
			name: "negative limit",
			file: "bad.yaml",
			content: `
name: bad
query:
  path:
    - {entity_type: node.Node., tag: a}
  limit: -4
`,
			code: ErrCodeSchema,
		},
		{
			name: "first entry with join",
			file: "bad.yaml",
			content: `
name: bad
query:
  path:
    - {entity_type: node.Node., tag: a, joining_keyword: with_incoming, joining_value: x, edge_tag: x--a}
`,
			code: ErrCodeSchema,
		},
		{
			name: "filter on unknown tag",
			file: "bad.yaml",
			content: `
name: bad
query:
  path:
    - {entity_type: node.Node., tag: a}
  filters:
    ghost: {id: 1}
`,
			code: ErrCodeQuery,
			msg:  "ghost",
		},
		{
			name:    "yaml syntax error",
			file:    "bad.yaml",
			content: "name: [unclosed",
			code:    ErrCodeDecode,
		},
		{
			name:    "unsupported extension",
			file:    "bad.toml",
			content: "name = 'x'",
			code:    ErrCodeFormat,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeDef(t, tc.file, tc.content))
			require.Error(t, err)
			loadErr, ok := err.(*LoadError)
			require.True(t, ok, "expected a *LoadError, got %T: %v", err, err)
			assert.Equal(t, tc.code, loadErr.Code)
			if tc.msg != "" {
				assert.Contains(t, loadErr.Message, tc.msg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	loadErr, ok := err.(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeRead, loadErr.Code)
}

func TestDefinitionHashIsStable(t *testing.T) {
	def1, err := Load(writeDef(t, "a.yaml", validYAML))
	require.NoError(t, err)
	def2, err := Load(writeDef(t, "b.yaml", validYAML))
	require.NoError(t, err)

	h1, err := def1.Hash()
	require.NoError(t, err)
	h2, err := def2.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	def2.Description = "changed"
	h3, err := def2.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestBuildAndExecute(t *testing.T) {
	st, _ := testutil.DemoStore(t)

	def, err := Load(writeDef(t, "int-values.yaml", validYAML))
	require.NoError(t, err)

	b, err := def.Build(st)
	require.NoError(t, err)

	rows, err := b.All(context.Background())
	require.NoError(t, err)
	// The demo graph stores the integers 5, 7, 12 and 60.
	require.Len(t, rows, 4)
	var values []any
	for _, row := range rows {
		require.Len(t, row, 2)
		values = append(values, row[1])
	}
	assert.Equal(t, []any{int64(5), int64(7), int64(12), int64(60)}, values)
}

func TestBuildCompileOnly(t *testing.T) {
	def, err := Load(writeDef(t, "int-values.yaml", validYAML))
	require.NoError(t, err)

	b, err := def.Build(nil)
	require.NoError(t, err)
	compiled, err := b.Compile()
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "SELECT")
}
