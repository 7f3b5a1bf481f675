package builder

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/provq/provq/internal/orm"
)

// DefaultBatchSize is the row batch size the non-streaming result
// methods read with.
const DefaultBatchSize = 100

// resultSet pairs open rows with the per-row decoding strategy:
// through the projection table for compiled queries, a plain column
// scan for injected statements.
type resultSet struct {
	rows  *sql.Rows
	dec   *orm.RowDecoder
	width int
}

func (r *resultSet) next() bool   { return r.rows.Next() }
func (r *resultSet) close() error { return r.rows.Close() }
func (r *resultSet) err() error   { return r.rows.Err() }

func (r *resultSet) decode() ([]any, error) {
	if r.dec != nil {
		return r.dec.DecodeRow(r.rows)
	}
	raw := make([]any, r.width)
	ptrs := make([]any, r.width)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan result row: %w", err)
	}
	for i, v := range raw {
		if b, ok := v.([]byte); ok {
			raw[i] = string(b)
		}
	}
	return raw, nil
}

// query compiles the current state and executes it, returning the open
// result set. The caller closes it.
func (b *Builder) query(ctx context.Context) (*resultSet, error) {
	if b.store == nil {
		return nil, NewInputError("builder has no store to execute against")
	}
	compiled, err := b.Compile()
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("sql", compiled.SQL).Int("args", len(compiled.Args)).Msg("execute query")
	rows, err := b.store.Query(ctx, compiled.SQL, compiled.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("result columns: %w", err)
	}
	rs := &resultSet{rows: rows, width: len(cols)}
	if len(compiled.Cells) > 0 {
		dec := orm.NewRowDecoder(compiled.Cells)
		if len(cols) != dec.Width() {
			rows.Close()
			return nil, NewInternalError("query returned %d columns, the projection table expects %d",
				len(cols), dec.Width())
		}
		rs.dec = dec
	}
	return rs, nil
}

// IterAll streams result rows to fn in batches of batchSize; zero or
// negative means DefaultBatchSize. An fn error aborts the iteration
// and propagates. The batch slice is fn's to keep.
func (b *Builder) IterAll(ctx context.Context, batchSize int, fn func(batch [][]any) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	rs, err := b.query(ctx)
	if err != nil {
		return err
	}
	defer rs.close()

	batch := make([][]any, 0, batchSize)
	for rs.next() {
		row, err := rs.decode()
		if err != nil {
			return err
		}
		batch = append(batch, row)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([][]any, 0, batchSize)
		}
	}
	if err := rs.err(); err != nil {
		return fmt.Errorf("iterate results: %w", err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// All returns every result row, one decoded value per projected cell
// in projection order.
func (b *Builder) All(ctx context.Context) ([][]any, error) {
	var out [][]any
	err := b.IterAll(ctx, DefaultBatchSize, func(batch [][]any) error {
		out = append(out, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AllFlat returns every result row concatenated into one flat slice.
func (b *Builder) AllFlat(ctx context.Context) ([]any, error) {
	rows, err := b.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, row := range rows {
		out = append(out, row...)
	}
	return out, nil
}

// IterDict streams result rows to fn keyed tag then projected
// property. Injected statements carry no projection table to key by,
// so dict results need a compiled query.
func (b *Builder) IterDict(ctx context.Context, batchSize int, fn func(batch []map[string]map[string]any) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if b.injected != nil {
		return NewInputError("dict results need a compiled projection table, not an injected statement")
	}
	rs, err := b.query(ctx)
	if err != nil {
		return err
	}
	defer rs.close()

	cells := rs.dec.Cells()
	batch := make([]map[string]map[string]any, 0, batchSize)
	for rs.next() {
		row, err := rs.decode()
		if err != nil {
			return err
		}
		m := make(map[string]map[string]any, len(cells))
		for i, cell := range cells {
			inner := m[cell.Tag]
			if inner == nil {
				inner = make(map[string]any)
				m[cell.Tag] = inner
			}
			inner[cell.Key] = row[i]
		}
		batch = append(batch, m)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]map[string]map[string]any, 0, batchSize)
		}
	}
	if err := rs.err(); err != nil {
		return fmt.Errorf("iterate results: %w", err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// Dict returns every result row keyed tag then projected property.
func (b *Builder) Dict(ctx context.Context) ([]map[string]map[string]any, error) {
	var out []map[string]map[string]any
	err := b.IterDict(ctx, DefaultBatchSize, func(batch []map[string]map[string]any) error {
		out = append(out, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first result row, or (nil, nil) when the query
// matches nothing. The builder's limit is untouched; the statement is
// stepped at most once.
func (b *Builder) First(ctx context.Context) ([]any, error) {
	rs, err := b.query(ctx)
	if err != nil {
		return nil, err
	}
	defer rs.close()
	if !rs.next() {
		if err := rs.err(); err != nil {
			return nil, fmt.Errorf("iterate results: %w", err)
		}
		return nil, nil
	}
	return rs.decode()
}

// One returns exactly one result row: zero rows is ErrNotExistent,
// more than one ErrMultipleObjects. The limit is set to 2 for the
// check and stays 2 afterwards.
func (b *Builder) One(ctx context.Context) ([]any, error) {
	if err := b.Limit(2); err != nil {
		return nil, err
	}
	res, err := b.All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(res) {
	case 0:
		return nil, ErrNotExistent
	case 1:
		return res[0], nil
	default:
		return nil, ErrMultipleObjects
	}
}

// Count returns the number of result rows, wrapping the compiled
// statement in a counting select.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	if b.store == nil {
		return 0, NewInputError("builder has no store to execute against")
	}
	compiled, err := b.Compile()
	if err != nil {
		return 0, err
	}
	countSQL := compiled.CountSQL()
	b.log.Debug().Str("sql", countSQL).Int("args", len(compiled.Args)).Msg("execute count")
	row, err := b.store.QueryRow(ctx, countSQL, compiled.Args...)
	if err != nil {
		return 0, fmt.Errorf("execute count: %w", err)
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	return n, nil
}
