package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provq/provq/internal/entity"
)

func TestTable_Names(t *testing.T) {
	assert.Equal(t, "nodes", Table(entity.KindNode))
	assert.Equal(t, "users", Table(entity.KindUser))
	assert.Equal(t, "computers", Table(entity.KindComputer))
	assert.Equal(t, "comments", Table(entity.KindComment))
	assert.Equal(t, "logs", Table(entity.KindLog))
	assert.Equal(t, "authinfos", Table(entity.KindAuthInfo))

	// GROUPS is a window-frame keyword in sqlite; the table name dodges it.
	assert.Equal(t, "groups_", Table(entity.KindGroup))
}

func TestColumnsFor_ShapePerKind(t *testing.T) {
	widths := map[entity.Kind]int{
		entity.KindNode:     12,
		entity.KindGroup:    8,
		entity.KindUser:     5,
		entity.KindComputer: 8,
		entity.KindComment:  7,
		entity.KindLog:      8,
		entity.KindAuthInfo: 6,
	}

	for kind, want := range widths {
		cols := ColumnsFor(kind)
		assert.Len(t, cols, want, "kind %s", kind)
		require.NotEmpty(t, cols)
		assert.Equal(t, "id", cols[0].Name, "kind %s leads with id", kind)
	}
}

func TestLookupColumn(t *testing.T) {
	cols := ColumnsFor(entity.KindNode)

	col, ok := lookupColumn(cols, "attributes")
	require.True(t, ok)
	assert.Equal(t, ColJSON, col.Type)

	_, ok = lookupColumn(cols, "nope")
	assert.False(t, ok)
}

func TestClosureColumns(t *testing.T) {
	bare := closureColumns(false)
	assert.Equal(t, []string{"ancestor_id", "descendant_id", "depth"}, columnNames(bare))

	withPath := closureColumns(true)
	assert.Equal(t, []string{"ancestor_id", "descendant_id", "depth", "path"}, columnNames(withPath))
	assert.Equal(t, ColJSON, withPath[3].Type)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"calc"`, quoteIdent("calc"))
	assert.Equal(t, `"calc--result"`, quoteIdent("calc--result"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}

func TestJSONPath(t *testing.T) {
	testCases := []struct {
		name     string
		segments []string
		want     string
	}{
		{"single key", []string{"energy"}, "$.energy"},
		{"nested keys", []string{"cell", "volume"}, "$.cell.volume"},
		{"array index", []string{"kinds", "0"}, "$.kinds[0]"},
		{"index then key", []string{"sites", "2", "kind_name"}, "$.sites[2].kind_name"},
		{"leading digit key is quoted", []string{"0abc"}, `$."0abc"`},
		{"spaced key is quoted", []string{"unit cell"}, `$."unit cell"`},
		{"embedded quote is escaped", []string{`a"b`}, `$."a\"b"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, jsonPath(tc.segments))
		})
	}
}
