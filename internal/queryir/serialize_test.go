package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleWire() map[string]any {
	return map[string]any{
		"path": []any{
			map[string]any{
				"entity_type": "process.calculation.calcjob.CalcJobNode.",
				"tag":         "calc",
			},
			map[string]any{
				"entity_type":     "data.core.int.Int.",
				"tag":             "result",
				"joining_keyword": "with_incoming",
				"joining_value":   "calc",
				"edge_tag":        "calc--result",
				"outerjoin":       false,
			},
		},
		"filters": map[string]any{
			"calc":         map[string]any{"attributes.exit_status": 0},
			"result":       map[string]any{"node_type": map[string]any{"like": "data.core.int.%"}},
			"calc--result": map[string]any{"label": "result"},
		},
		"project": map[string]any{
			"result": []any{"id", map[string]any{"path": "attributes.value", "cast": "i"}},
		},
		"order_by": []any{
			map[string]any{"result": []any{"id"}},
		},
		"limit":    nil,
		"offset":   nil,
		"distinct": false,
	}
}

func TestParseDescription_Sample(t *testing.T) {
	desc, err := ParseDescription(sampleWire())
	require.NoError(t, err)

	require.Len(t, desc.Path, 2)
	assert.Equal(t, []string{"process.calculation.calcjob.CalcJobNode."}, desc.Path[0].EntityTypes)
	assert.Equal(t, "calc", desc.Path[0].Tag)
	assert.Equal(t, JoinWithIncoming, desc.Path[1].JoinKeyword)
	assert.Equal(t, "calc", desc.Path[1].JoinTarget)
	assert.Equal(t, "calc--result", desc.Path[1].EdgeTag)

	assert.Len(t, desc.Filters, 3)
	assert.Len(t, desc.Projections["result"], 2)
	require.Len(t, desc.OrderBy, 1)
	assert.Equal(t, "result", desc.OrderBy[0].Tag)
	assert.Nil(t, desc.Limit)
	assert.NoError(t, desc.Validate())
}

func TestDescription_WireRoundTrip(t *testing.T) {
	desc, err := ParseDescription(sampleWire())
	require.NoError(t, err)

	reparsed, err := ParseDescription(desc.ToWire())
	require.NoError(t, err)
	assert.Equal(t, desc, reparsed)
}

func TestParseDescription_EntityTypeList(t *testing.T) {
	wire := map[string]any{
		"path": []any{
			map[string]any{
				"entity_type": []any{"data.core.int.Int.", "data.core.float.Float."},
				"tag":         "data",
			},
		},
	}

	desc, err := ParseDescription(wire)
	require.NoError(t, err)
	assert.Equal(t, []string{"data.core.int.Int.", "data.core.float.Float."}, desc.Path[0].EntityTypes)

	// A single-element list serializes back to the bare string form.
	single, err := ParseDescription(map[string]any{
		"path": []any{map[string]any{"entity_type": []any{"user"}, "tag": "user"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "user", single.ToWire()["path"].([]any)[0].(map[string]any)["entity_type"])
}

func TestParseDescription_Limits(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected int64
	}{
		{"json number", float64(10), 10},
		{"yaml int", 7, 7},
		{"int64", int64(3), 3},
		{"decoder number", json.Number("42"), 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := ParseDescription(map[string]any{"limit": tt.value})
			require.NoError(t, err)
			require.NotNil(t, desc.Limit)
			assert.Equal(t, tt.expected, *desc.Limit)
		})
	}
}

func TestParseDescription_Errors(t *testing.T) {
	tests := []struct {
		name     string
		wire     map[string]any
		expected string
	}{
		{
			"unknown top-level key",
			map[string]any{"porject": map[string]any{}},
			"unknown key",
		},
		{
			"path entry without tag",
			map[string]any{"path": []any{map[string]any{"entity_type": "user"}}},
			"missing tag",
		},
		{
			"path entry without entity type",
			map[string]any{"path": []any{map[string]any{"tag": "user"}}},
			"missing entity_type",
		},
		{
			"first entry with join fields",
			map[string]any{"path": []any{map[string]any{
				"entity_type": "user", "tag": "user", "joining_keyword": "with_node", "joining_value": "x",
			}}},
			"first path entry",
		},
		{
			"later entry without join fields",
			map[string]any{"path": []any{
				map[string]any{"entity_type": "user", "tag": "a"},
				map[string]any{"entity_type": "user", "tag": "b"},
			}},
			"missing joining_keyword",
		},
		{
			"fractional limit",
			map[string]any{"limit": 2.5},
			"expected an integer",
		},
		{
			"non-boolean distinct",
			map[string]any{"distinct": "yes"},
			"expected a boolean",
		},
		{
			"unknown path entry key",
			map[string]any{"path": []any{map[string]any{"entity_type": "user", "tag": "u", "alias": "x"}}},
			"unknown path entry key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescription(tt.wire)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestParseDescription_FromJSON(t *testing.T) {
	raw := `{
		"path": [
			{"entity_type": "group.core", "tag": "family"},
			{"entity_type": "node.Node.", "tag": "member",
			 "joining_keyword": "with_group", "joining_value": "family",
			 "edge_tag": "family--member", "outerjoin": false}
		],
		"filters": {"family": {"label": {"like": "batch-%"}}},
		"project": {"member": ["uuid"]},
		"order_by": [],
		"limit": 100,
		"offset": null,
		"distinct": true
	}`

	var wire map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &wire))

	desc, err := ParseDescription(wire)
	require.NoError(t, err)
	require.NoError(t, desc.Validate())

	assert.Equal(t, JoinWithGroup, desc.Path[1].JoinKeyword)
	assert.Equal(t, int64(100), *desc.Limit)
	assert.True(t, desc.Distinct)
}

func TestParseDescription_FromYAML(t *testing.T) {
	raw := `
path:
  - entity_type: process.calculation.calcjob.CalcJobNode.
    tag: calc
  - entity_type: data.core.structure.StructureData.
    tag: structure
    joining_keyword: with_outgoing
    joining_value: calc
    edge_tag: calc--structure
    outerjoin: false
filters:
  structure:
    attributes.kinds:
      contains: [Si]
project:
  structure: ['*']
limit: 5
`

	var wire map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(raw), &wire))

	desc, err := ParseDescription(wire)
	require.NoError(t, err)
	require.NoError(t, desc.Validate())

	assert.Equal(t, JoinWithOutgoing, desc.Path[1].JoinKeyword)
	require.Len(t, desc.Projections["structure"], 1)
	assert.Equal(t, ProjectEntity, desc.Projections["structure"][0].Path)
	assert.Equal(t, int64(5), *desc.Limit)
}
