package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provq/provq/internal/builder"
	"github.com/provq/provq/internal/orm"
	"github.com/provq/provq/internal/testutil"
)

// ints returns a builder over the demo Int nodes ordered by id.
func ints(t *testing.T) *builder.Builder {
	t.Helper()
	st, _ := testutil.DemoStore(t)
	b := builder.New(st).Append(builder.AppendSpec{
		TypeString: "data.core.int.Int.",
		Tag:        "ints",
	})
	require.NoError(t, b.Err())
	require.NoError(t, b.OrderBy(map[string]any{"ints": []any{"id"}}))
	return b
}

func TestRoundTripEquivalence(t *testing.T) {
	st, _ := testutil.DemoStore(t)
	ctx := context.Background()

	b := builder.New(st).
		Append(builder.AppendSpec{
			TypeString: "data.core.int.Int.",
			Tag:        "ints",
			Project:    []any{"id", "label"},
		}).
		Append(builder.AppendSpec{
			TypeString:   "process.calculation.calcjob.CalcJobNode.",
			Tag:          "creator",
			WithOutgoing: "ints",
			Project:      "label",
		})
	require.NoError(t, b.Err())
	require.NoError(t, b.OrderBy(map[string]any{"ints": []any{"id"}}))

	wire := b.QueryDict()
	b2, err := builder.FromQueryDict(st, wire)
	require.NoError(t, err)

	c1, err := b.Compile()
	require.NoError(t, err)
	c2, err := b2.Compile()
	require.NoError(t, err)
	assert.Equal(t, c1.SQL, c2.SQL)
	assert.Equal(t, c1.Args, c2.Args)

	rows1, err := b.All(ctx)
	require.NoError(t, err)
	rows2, err := b2.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows1, rows2)

	// The demo graph has two created integers: sum and product.
	require.Len(t, rows1, 2)
	assert.Equal(t, []any{int64(5), "sum", "addition"}, rows1[0])
	assert.Equal(t, []any{int64(8), "product", "multiplication"}, rows1[1])
}

func TestOneCardinality(t *testing.T) {
	ctx := context.Background()

	t.Run("zero rows", func(t *testing.T) {
		b := ints(t)
		require.NoError(t, b.AddFilter("ints", map[string]any{"label": "no such node"}))
		_, err := b.One(ctx)
		require.Error(t, err)
		assert.True(t, builder.IsNotExistentError(err))
	})

	t.Run("one row", func(t *testing.T) {
		b := ints(t)
		require.NoError(t, b.AddFilter("ints", map[string]any{"label": "sum"}))
		require.NoError(t, b.AddProjection("ints", "attributes.value"))
		row, err := b.One(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(12)}, row)
	})

	t.Run("many rows", func(t *testing.T) {
		_, err := ints(t).One(ctx)
		require.Error(t, err)
		assert.True(t, builder.IsMultipleObjectsError(err))
	})
}

func TestFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("empty result is not an error", func(t *testing.T) {
		b := ints(t)
		require.NoError(t, b.AddFilter("ints", map[string]any{"label": "no such node"}))
		row, err := b.First(ctx)
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("first in query order", func(t *testing.T) {
		b := ints(t)
		require.NoError(t, b.AddProjection("ints", "label"))
		row, err := b.First(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{"first addend"}, row)
	})
}

func TestLimitOffsetPaging(t *testing.T) {
	ctx := context.Background()
	b := ints(t)
	require.NoError(t, b.AddProjection("ints", "id"))

	all, err := b.AllFlat(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(5), int64(8)}, all)

	require.NoError(t, b.Limit(2))
	require.NoError(t, b.Offset(1))
	window, err := b.AllFlat(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(5)}, window)

	// Clearing the window restores the full result.
	require.NoError(t, b.Limit(-1))
	require.NoError(t, b.Offset(-1))
	again, err := b.AllFlat(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, again)
}

// TestClosureMutualInverse checks the two traversal directions agree:
// the descendants of a node are exactly the nodes that count it among
// their ancestors.
func TestClosureMutualInverse(t *testing.T) {
	st, _ := testutil.DemoStore(t)
	ctx := context.Background()

	down := builder.New(st).
		Append(builder.AppendSpec{
			Handle:  orm.Node{},
			Tag:     "root",
			Filters: map[string]any{"label": "first addend"},
		}).
		Append(builder.AppendSpec{
			Handle:        orm.Node{},
			Tag:           "d",
			WithAncestors: "root",
			Project:       "id",
		})
	require.NoError(t, down.Err())
	require.NoError(t, down.OrderBy(map[string]any{"d": []any{"id"}}))
	descendants, err := down.AllFlat(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4), int64(5), int64(6), int64(7), int64(8)}, descendants)

	up := builder.New(st).
		Append(builder.AppendSpec{
			Handle:  orm.Node{},
			Tag:     "y",
			Project: "id",
		}).
		Append(builder.AppendSpec{
			Handle:          orm.Node{},
			Tag:             "a",
			WithDescendants: "y",
			Filters:         map[string]any{"label": "first addend"},
		}).
		Distinct()
	require.NoError(t, up.Err())
	require.NoError(t, up.OrderBy(map[string]any{"y": []any{"id"}}))
	withAncestor, err := up.AllFlat(ctx)
	require.NoError(t, err)
	assert.Equal(t, descendants, withAncestor)
}

func TestGroupSubclassMatching(t *testing.T) {
	st, _ := testutil.DemoStore(t)
	ctx := context.Background()

	b := builder.New(st).Append(builder.AppendSpec{TypeString: "group.core"})
	require.NoError(t, b.Err())
	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "subclass matching includes core.import")

	exact := builder.New(st).Append(builder.AppendSpec{TypeString: "group.core", ExactType: true})
	require.NoError(t, exact.Err())
	n, err = exact.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestInjectSQLBypass(t *testing.T) {
	ctx := context.Background()
	b := ints(t)
	require.NoError(t, b.AddProjection("ints", "id"))

	b.InjectSQL("SELECT id FROM nodes WHERE label = ?", "product")
	rows, err := b.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(8)}}, rows)

	// Injected statements carry no projection table.
	_, err = b.Dict(ctx)
	require.Error(t, err)
	assert.True(t, builder.IsInputError(err))

	// Any mutation drops the injection and compiles the declarative
	// state again.
	require.NoError(t, b.Limit(2))
	flat, err := b.AllFlat(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, flat)

	// ResetQuery drops a fresh injection without any other mutation.
	b.InjectSQL("SELECT 1").ResetQuery()
	flat, err = b.AllFlat(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, flat)
}

func TestCompileReuse(t *testing.T) {
	b := ints(t)
	require.NoError(t, b.AddProjection("ints", "id"))

	c1, err := b.Compile()
	require.NoError(t, err)
	c2, err := b.Compile()
	require.NoError(t, err)
	assert.Same(t, c1, c2, "unchanged state reuses the compiled form")

	require.NoError(t, b.Limit(1))
	c3, err := b.Compile()
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
}

func TestDictKeying(t *testing.T) {
	ctx := context.Background()
	b := ints(t)
	require.NoError(t, b.AddFilter("ints", map[string]any{"label": "sum"}))
	require.NoError(t, b.AddProjection("ints", []any{"label", "attributes.value"}))

	rows, err := b.Dict(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]map[string]any{
		"ints": {
			"label":            "sum",
			"attributes.value": int64(12),
		},
	}, rows[0])
}

func TestOuterJoinMissingEntity(t *testing.T) {
	st, _ := testutil.DemoStore(t)
	ctx := context.Background()

	// The sum node ran on no computer; the outer join keeps the row
	// with a nil entity cell.
	b := builder.New(st).
		Append(builder.AppendSpec{
			Handle:  orm.Node{},
			Tag:     "n",
			Filters: map[string]any{"label": "sum"},
			Project: "label",
		}).
		Append(builder.AppendSpec{
			Handle:    orm.Computer{},
			Tag:       "c",
			WithNode:  "n",
			OuterJoin: true,
			Project:   "*",
		})
	require.NoError(t, b.Err())

	rows, err := b.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sum", rows[0][0])
	assert.Nil(t, rows[0][1])

	// A node that did run on a computer fills the cell.
	require.NoError(t, b.AddFilter("n", map[string]any{"label": "addition"}))
	rows, err = b.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	comp, ok := rows[0][1].(*orm.Computer)
	require.True(t, ok, "entity cell decodes to a typed row")
	assert.Equal(t, "localhost", comp.Hostname)
}
