package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProjections_BarePath(t *testing.T) {
	specs, err := ParseProjections([]any{"id", "attributes.energy"})
	require.NoError(t, err)

	require.Len(t, specs, 2)
	assert.Equal(t, ProjectionSpec{Path: "id"}, specs[0])
	assert.Equal(t, ProjectionSpec{Path: "attributes.energy"}, specs[1])
}

func TestParseProjections_SingleItemWithoutList(t *testing.T) {
	specs, err := ParseProjections("uuid")
	require.NoError(t, err)

	require.Len(t, specs, 1)
	assert.Equal(t, "uuid", specs[0].Path)
}

func TestParseProjections_FlattensOneLevel(t *testing.T) {
	specs, err := ParseProjections([]any{[]any{"id", "uuid"}, "label"})
	require.NoError(t, err)

	require.Len(t, specs, 3)
	assert.Equal(t, "id", specs[0].Path)
	assert.Equal(t, "uuid", specs[1].Path)
	assert.Equal(t, "label", specs[2].Path)
}

func TestParseProjections_FlatForm(t *testing.T) {
	specs, err := ParseProjections([]any{
		map[string]any{"path": "ctime", "func": "max"},
		map[string]any{"path": "attributes.energy", "cast": "f"},
	})
	require.NoError(t, err)

	require.Len(t, specs, 2)
	assert.Equal(t, ProjectionSpec{Path: "ctime", Func: "max"}, specs[0])
	assert.Equal(t, ProjectionSpec{Path: "attributes.energy", Cast: "f"}, specs[1])
}

func TestParseProjections_NestedForm(t *testing.T) {
	// Historical shape: the path keys a map of options.
	specs, err := ParseProjections([]any{
		map[string]any{"ctime": map[string]any{"func": "max"}},
		map[string]any{"attributes.energy": map[string]any{"cast": "f"}},
	})
	require.NoError(t, err)

	require.Len(t, specs, 2)
	assert.Equal(t, ProjectionSpec{Path: "ctime", Func: "max"}, specs[0])
	assert.Equal(t, ProjectionSpec{Path: "attributes.energy", Cast: "f"}, specs[1])
}

func TestParseProjections_EntityWithFuncRejected(t *testing.T) {
	_, err := ParseProjections([]any{
		map[string]any{"path": "*", "func": "count"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not accept a function")
}

func TestParseProjections_Invalid(t *testing.T) {
	tests := []struct {
		name string
		wire any
	}{
		{"unknown func", []any{map[string]any{"path": "id", "func": "sum"}}},
		{"unknown cast", []any{map[string]any{"path": "id", "cast": "x"}}},
		{"unknown option", []any{map[string]any{"path": "id", "sort": "asc"}}},
		{"non-string option", []any{map[string]any{"path": "id", "func": 1}}},
		{"empty path", []any{map[string]any{"path": ""}}},
		{"two paths in nested form", []any{map[string]any{"a": map[string]any{}, "b": map[string]any{}}}},
		{"number item", []any{42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProjections(tt.wire)
			require.Error(t, err)
		})
	}
}

func TestProjectionsToWire(t *testing.T) {
	wire := ProjectionsToWire([]ProjectionSpec{
		{Path: "id"},
		{Path: "ctime", Func: "max"},
		{Path: "attributes.energy", Cast: "f"},
	})

	require.Len(t, wire, 3)
	assert.Equal(t, "id", wire[0], "plain paths stay bare strings")
	assert.Equal(t, map[string]any{"path": "ctime", "func": "max"}, wire[1])
	assert.Equal(t, map[string]any{"path": "attributes.energy", "cast": "f"}, wire[2])
}

func TestProjections_WireRoundTrip(t *testing.T) {
	specs, err := ParseProjections([]any{
		"*",
		map[string]any{"path": "ctime", "func": "min", "cast": "d"},
	})
	require.NoError(t, err)

	reparsed, err := ParseProjections(ProjectionsToWire(specs))
	require.NoError(t, err)
	assert.Equal(t, specs, reparsed)
}
