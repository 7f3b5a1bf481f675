package querysql

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/provq/provq/internal/queryir"
)

// Golden statements pin the exact SQL text for representative query
// shapes.
//
// To regenerate golden files, run:
//
//	go test ./internal/querysql -update
func TestCompile_GoldenStatements(t *testing.T) {
	testCases := []struct {
		name string
		desc *queryir.Description
	}{
		{
			name: "single_vertex",
			desc: &queryir.Description{
				Path: []queryir.VertexSpec{rootVertex("calc", "process.calculation.calcjob.CalcJobNode.")},
				Filters: map[string]queryir.FilterTree{
					"calc": mustTree(t, map[string]any{
						"node_type":              map[string]any{"like": "process.calculation.%"},
						"attributes.exit_status": 0,
					}),
				},
				Projections: map[string][]queryir.ProjectionSpec{
					"calc": {{Path: "uuid"}, {Path: "attributes.energy", Cast: "f"}},
				},
				OrderBy: []queryir.OrderSpec{{Tag: "calc", Items: []queryir.OrderItem{{Path: "ctime", Order: "desc"}}}},
				Limit:   i64(25),
			},
		},
		{
			name: "provenance_chain",
			desc: &queryir.Description{
				Path: []queryir.VertexSpec{
					rootVertex("calc", "process.calculation.calcjob.CalcJobNode."),
					joinedVertex("result", "data.core.int.Int.", queryir.JoinWithIncoming, "calc"),
				},
				Filters: map[string]queryir.FilterTree{
					"calc":         mustTree(t, map[string]any{"attributes.exit_status": 0}),
					"calc--result": mustTree(t, map[string]any{"label": "result"}),
				},
				Projections: map[string][]queryir.ProjectionSpec{
					"result":       {{Path: queryir.ProjectEntity}},
					"calc--result": {{Path: "type"}},
				},
			},
		},
		{
			name: "group_membership",
			desc: &queryir.Description{
				Path: []queryir.VertexSpec{
					rootVertex("family", "group.core"),
					joinedVertex("member", "data.core.structure.StructureData.", queryir.JoinWithGroup, "family"),
				},
				Filters: map[string]queryir.FilterTree{
					"family": mustTree(t, map[string]any{"label": map[string]any{"like": "project/%"}}),
				},
				Projections: map[string][]queryir.ProjectionSpec{
					"member": {{Path: "uuid"}},
				},
				Distinct: true,
			},
		},
		{
			name: "descendant_closure",
			desc: &queryir.Description{
				Path: []queryir.VertexSpec{
					rootVertex("root", "node.Node."),
					joinedVertex("child", "node.Node.", queryir.JoinWithAncestors, "root"),
				},
				Filters: map[string]queryir.FilterTree{
					"root":        mustTree(t, map[string]any{"uuid": "c0ffee00-aaaa-4bbb-8ccc-12345678abcd"}),
					"root--child": mustTree(t, map[string]any{"depth": map[string]any{"<=": 3}}),
				},
				Projections: map[string][]queryir.ProjectionSpec{
					"child":       {{Path: "id"}},
					"root--child": {{Path: "depth"}},
				},
			},
		},
		{
			name: "ancestor_closure_with_path",
			desc: &queryir.Description{
				Path: []queryir.VertexSpec{
					rootVertex("leaf", "data.core.int.Int."),
					joinedVertex("origin", "node.Node.", queryir.JoinWithDescendants, "leaf"),
				},
				Filters: map[string]queryir.FilterTree{
					"leaf": mustTree(t, map[string]any{"id": 7}),
				},
				Projections: map[string][]queryir.ProjectionSpec{
					"origin":       {{Path: "uuid"}},
					"leaf--origin": {{Path: "path"}},
				},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			compiled, err := NewCompiler().Compile(tc.desc)
			require.NoError(t, err)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, tc.name, []byte(compiled.SQL+"\n"))
		})
	}
}
