package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provq/provq/internal/entity"
	"github.com/provq/provq/internal/queryir"
)

func nodeAlias(tag string) aliasInfo {
	return aliasInfo{
		sqlName: quoteIdent(tag),
		kind:    entity.KindNode,
		columns: ColumnsFor(entity.KindNode),
	}
}

func mustTree(t *testing.T, wire map[string]any) queryir.FilterTree {
	t.Helper()
	tree, err := queryir.ParseFilterTree(wire)
	require.NoError(t, err)
	return tree
}

func TestCompileFilterTree_Empty(t *testing.T) {
	sql, params, err := compileFilterTree(nodeAlias("n"), "n", nil)
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)
}

func TestCompileFilterTree_Operators(t *testing.T) {
	testCases := []struct {
		name       string
		wire       map[string]any
		wantSQL    string
		wantParams []any
	}{
		{
			name:       "bare value is equality",
			wire:       map[string]any{"id": 42},
			wantSQL:    `"n".id = ?`,
			wantParams: []any{42},
		},
		{
			name:       "comparison",
			wire:       map[string]any{"id": map[string]any{"<": 10}},
			wantSQL:    `"n".id < ?`,
			wantParams: []any{10},
		},
		{
			name:       "negated equality",
			wire:       map[string]any{"label": map[string]any{"!==": "x"}},
			wantSQL:    `NOT ("n".label = ?)`,
			wantParams: []any{"x"},
		},
		{
			name:       "null equality is IS NULL",
			wire:       map[string]any{"process_type": nil},
			wantSQL:    `"n".process_type IS NULL`,
			wantParams: nil,
		},
		{
			name:       "like carries an escape clause",
			wire:       map[string]any{"label": map[string]any{"like": "cif?%"}},
			wantSQL:    `"n".label LIKE ? ESCAPE '\'`,
			wantParams: []any{"cif?%"},
		},
		{
			name:       "ilike lowers both sides",
			wire:       map[string]any{"label": map[string]any{"ilike": "CIF%"}},
			wantSQL:    `lower("n".label) LIKE lower(?) ESCAPE '\'`,
			wantParams: []any{"CIF%"},
		},
		{
			name:       "in renders one placeholder per element",
			wire:       map[string]any{"id": map[string]any{"in": []any{1, 2, 3}}},
			wantSQL:    `"n".id IN (?, ?, ?)`,
			wantParams: []any{1, 2, 3},
		},
		{
			name:       "negated in",
			wire:       map[string]any{"id": map[string]any{"!in": []any{7, 8}}},
			wantSQL:    `NOT ("n".id IN (?, ?))`,
			wantParams: []any{7, 8},
		},
		{
			name:       "json descent binds the path",
			wire:       map[string]any{"attributes.energy": map[string]any{">": 0.5}},
			wantSQL:    `json_extract("n".attributes, ?) > ?`,
			wantParams: []any{"$.energy", 0.5},
		},
		{
			name:       "deep json path with numeric segment",
			wire:       map[string]any{"attributes.cell.0": 4.2},
			wantSQL:    `json_extract("n".attributes, ?) = ?`,
			wantParams: []any{"$.cell[0]", 4.2},
		},
		{
			name:       "has_key probes object members",
			wire:       map[string]any{"attributes": map[string]any{"has_key": "energy"}},
			wantSQL:    `EXISTS (SELECT 1 FROM json_each("n".attributes) WHERE json_each.key = ?)`,
			wantParams: []any{"energy"},
		},
		{
			name:       "has_key below a path",
			wire:       map[string]any{"extras.tags": map[string]any{"has_key": "reviewed"}},
			wantSQL:    `EXISTS (SELECT 1 FROM json_each("n".extras, ?) WHERE json_each.key = ?)`,
			wantParams: []any{"$.tags", "reviewed"},
		},
		{
			name: "contains is a conjunction of EXISTS",
			wire: map[string]any{"attributes.kinds": map[string]any{"contains": []any{"Si", "O"}}},
			wantSQL: `(EXISTS (SELECT 1 FROM json_each("n".attributes, ?) WHERE json_each.value = ?)` +
				` AND EXISTS (SELECT 1 FROM json_each("n".attributes, ?) WHERE json_each.value = ?))`,
			wantParams: []any{"$.kinds", "Si", "$.kinds", "O"},
		},
		{
			name:       "of_type string maps onto the sqlite class",
			wire:       map[string]any{"attributes.formula": map[string]any{"of_type": "string"}},
			wantSQL:    `json_type("n".attributes, ?) = 'text'`,
			wantParams: []any{"$.formula"},
		},
		{
			name:       "of_type number spans integer and real",
			wire:       map[string]any{"attributes.energy": map[string]any{"of_type": "number"}},
			wantSQL:    `json_type("n".attributes, ?) IN ('integer', 'real')`,
			wantParams: []any{"$.energy"},
		},
		{
			name:       "of_length",
			wire:       map[string]any{"attributes.kinds": map[string]any{"of_length": 2}},
			wantSQL:    `json_array_length("n".attributes, ?) = ?`,
			wantParams: []any{"$.kinds", int64(2)},
		},
		{
			name:       "longer",
			wire:       map[string]any{"attributes.kinds": map[string]any{"longer": 1}},
			wantSQL:    `json_array_length("n".attributes, ?) > ?`,
			wantParams: []any{"$.kinds", int64(1)},
		},
		{
			name:       "shorter",
			wire:       map[string]any{"attributes.kinds": map[string]any{"shorter": 5}},
			wantSQL:    `json_array_length("n".attributes, ?) < ?`,
			wantParams: []any{"$.kinds", int64(5)},
		},
		{
			name:       "empty contains holds vacuously",
			wire:       map[string]any{"attributes.kinds": map[string]any{"contains": []any{}}},
			wantSQL:    `1 = 1`,
			wantParams: nil,
		},
		{
			name:       "negated empty contains never holds",
			wire:       map[string]any{"attributes.kinds": map[string]any{"!contains": []any{}}},
			wantSQL:    `NOT (1 = 1)`,
			wantParams: nil,
		},
		{
			name:       "empty and group holds vacuously",
			wire:       map[string]any{"id": map[string]any{"and": []any{}}},
			wantSQL:    `1 = 1`,
			wantParams: nil,
		},
		{
			name:       "empty or group never holds",
			wire:       map[string]any{"id": map[string]any{"or": []any{}}},
			wantSQL:    `0 = 1`,
			wantParams: nil,
		},
		{
			name:       "empty operator map constrains nothing",
			wire:       map[string]any{"id": map[string]any{}},
			wantSQL:    `1 = 1`,
			wantParams: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := compileFilterTree(nodeAlias("n"), "n", mustTree(t, tc.wire))
			require.NoError(t, err)
			assert.Equal(t, tc.wantSQL, sql)
			assert.Equal(t, tc.wantParams, params)
		})
	}
}

func TestCompileFilterTree_SortedKeysAndConjunction(t *testing.T) {
	tree := mustTree(t, map[string]any{
		"node_type": map[string]any{"like": "data.%"},
		"id":        map[string]any{">": 5},
	})

	sql, params, err := compileFilterTree(nodeAlias("n"), "n", tree)
	require.NoError(t, err)

	// id sorts before node_type, whatever the map order was.
	assert.Equal(t, `"n".id > ? AND "n".node_type LIKE ? ESCAPE '\'`, sql)
	assert.Equal(t, []any{5, "data.%"}, params)
}

func TestCompileFilterTree_Combinators(t *testing.T) {
	t.Run("or over subtrees", func(t *testing.T) {
		tree := mustTree(t, map[string]any{
			"or": []any{
				map[string]any{"id": 1},
				map[string]any{"label": "x"},
			},
		})
		sql, params, err := compileFilterTree(nodeAlias("n"), "n", tree)
		require.NoError(t, err)
		assert.Equal(t, `(("n".id = ?) OR ("n".label = ?))`, sql)
		assert.Equal(t, []any{1, "x"}, params)
	})

	t.Run("negated and", func(t *testing.T) {
		tree := mustTree(t, map[string]any{
			"!and": []any{
				map[string]any{"id": map[string]any{">": 0}},
				map[string]any{"id": map[string]any{"<": 9}},
			},
		})
		sql, _, err := compileFilterTree(nodeAlias("n"), "n", tree)
		require.NoError(t, err)
		assert.Equal(t, `NOT ((("n".id > ?) AND ("n".id < ?)))`, sql)
	})

	t.Run("empty disjunction never holds", func(t *testing.T) {
		tree := queryir.FilterTree{
			"or": queryir.CombinatorExpr{Op: "or"},
		}
		sql, params, err := compileFilterTree(nodeAlias("n"), "n", tree)
		require.NoError(t, err)
		assert.Equal(t, "0 = 1", sql)
		assert.Empty(t, params)
	})

	t.Run("field level or", func(t *testing.T) {
		tree := mustTree(t, map[string]any{
			"node_type": map[string]any{
				"or": []any{
					map[string]any{"==": "data.core.int.Int."},
					map[string]any{"like": `data.core.float.\%`},
				},
			},
		})
		sql, params, err := compileFilterTree(nodeAlias("n"), "n", tree)
		require.NoError(t, err)
		assert.Equal(t, `("n".node_type = ? OR "n".node_type LIKE ? ESCAPE '\')`, sql)
		assert.Equal(t, []any{"data.core.int.Int.", `data.core.float.\%`}, params)
	})
}

func TestCompileFilterTree_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		tree    queryir.FilterTree
		wantErr string
	}{
		{
			name:    "unknown column",
			tree:    mustTree(t, map[string]any{"colour": 1}),
			wantErr: `"colour" is not a field of tag "n"`,
		},
		{
			name:    "descent into a plain column",
			tree:    mustTree(t, map[string]any{"label.deep": 1}),
			wantErr: "is not a json document",
		},
		{
			name:    "json operator on a plain column",
			tree:    mustTree(t, map[string]any{"label": map[string]any{"has_key": "x"}}),
			wantErr: "field is not a json document",
		},
		{
			name:    "map value has no comparable rendering",
			tree:    queryir.FilterTree{"attributes": queryir.FieldExpr{Path: "attributes", Ops: []queryir.OpSpec{queryir.OpCondition{Operator: "==", Value: map[string]any{"a": 1}}}}},
			wantErr: "does not accept map[string]interface {} values",
		},
		{
			name:    "list equality is rejected",
			tree:    queryir.FilterTree{"attributes": queryir.FieldExpr{Path: "attributes", Ops: []queryir.OpSpec{queryir.OpCondition{Operator: "==", Value: []any{1, 2}}}}},
			wantErr: "does not accept []interface {} values",
		},
		{
			name:    "of_type with an unknown class",
			tree:    queryir.FilterTree{"attributes": queryir.FieldExpr{Path: "attributes", Ops: []queryir.OpSpec{queryir.OpCondition{Operator: "of_type", Value: "decimal"}}}},
			wantErr: `unknown type name "decimal"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := compileFilterTree(nodeAlias("n"), "n", tc.tree)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestFieldPaths_WalksCombinators(t *testing.T) {
	tree := mustTree(t, map[string]any{
		"depth": map[string]any{">": 1},
		"or": []any{
			map[string]any{"path": map[string]any{"contains": []any{7}}},
			map[string]any{"ancestor_id": 3},
		},
	})

	assert.ElementsMatch(t, []string{"depth", "path", "ancestor_id"}, fieldPaths(tree))
}
