// Package querysql compiles validated query descriptions into sqlite
// statements: one SELECT over the entity tables, with parameterized
// filters, projections, ordering and paging. Values never appear in
// the SQL text; every user-supplied value and JSON path binds as a
// placeholder.
package querysql

import (
	"fmt"
	"strings"

	"github.com/provq/provq/internal/entity"
	"github.com/provq/provq/internal/queryir"
)

// Compiler turns descriptions into executable statements. It is
// stateless and safe for concurrent use.
type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

// JSONShape tells result decoding how a cell's value relates to JSON
// text. json_extract returns SQL scalars for scalar paths but JSON text
// for objects and arrays, so path cells can only be decoded
// opportunistically.
type JSONShape int

const (
	JSONNone  JSONShape = iota // plain SQL value
	JSONDoc                    // whole JSON document column, always decode
	JSONMaybe                  // json_extract result, decode object and array text
)

// Cell describes one projected column group of the result set: the tag
// that produced it, the projected key, and how many SQL columns it
// spans. An entity cell spans the whole column set of the tag's kind;
// every other cell spans one column.
type Cell struct {
	Tag      string
	Key      string
	Kind     entity.Kind
	IsEntity bool
	Width    int
	JSON     JSONShape
}

// Compiled is one ready-to-run statement with its bound params and the
// cell layout mapping result columns back onto tags.
type Compiled struct {
	SQL   string
	Args  []any
	Cells []Cell
}

// Width returns the number of SQL columns the statement selects.
func (c *Compiled) Width() int {
	w := 0
	for _, cell := range c.Cells {
		w += cell.Width
	}
	return w
}

// CountSQL wraps the statement in a count over a derived table, which
// keeps any WITH clause legal and applies limit and offset before
// counting.
func (c *Compiled) CountSQL() string {
	return "SELECT count(*) FROM (" + c.SQL + ")"
}

// aliasInfo is one addressable tag at compile time: its quoted SQL
// alias, the kind behind it (vertices only) and the visible columns.
// Foreign-key edges carry no alias at all; fk marks them so filters
// and projections addressing them fail with a clear message instead of
// an unknown-identifier error from the driver.
type aliasInfo struct {
	sqlName string
	kind    entity.Kind
	columns []Column
	fk      bool
}

type fragment struct {
	sql  string
	args []any
}

type compilation struct {
	desc    *queryir.Description
	kinds   map[string]entity.Kind
	aliases map[string]aliasInfo
	ctes    []fragment
	joins   []fragment
}

// Compile validates desc and renders it. The description is not
// mutated; the implicit entity projection on the last vertex is
// applied on the fly when no tag projects anything.
func (c *Compiler) Compile(desc *queryir.Description) (*Compiled, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	st := &compilation{
		desc:    desc,
		kinds:   make(map[string]entity.Kind),
		aliases: make(map[string]aliasInfo),
	}
	if err := st.resolveVertices(); err != nil {
		return nil, err
	}
	if err := st.resolveJoins(); err != nil {
		return nil, err
	}
	selectSQL, selectParams, cells, err := st.buildSelect()
	if err != nil {
		return nil, err
	}
	whereSQL, whereParams, err := st.buildWhere()
	if err != nil {
		return nil, err
	}
	orderSQL, orderParams, err := st.buildOrder()
	if err != nil {
		return nil, err
	}

	// Params are appended in SQL text order: CTE bodies, select list,
	// joins, WHERE, ORDER BY, paging.
	var sb strings.Builder
	var args []any

	if len(st.ctes) > 0 {
		sb.WriteString("WITH RECURSIVE ")
		for i, cte := range st.ctes {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(cte.sql)
			args = append(args, cte.args...)
		}
		sb.WriteString(" ")
	}

	sb.WriteString("SELECT ")
	if desc.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(selectSQL)
	args = append(args, selectParams...)

	first := desc.Path[0].Tag
	sb.WriteString(" FROM ")
	sb.WriteString(Table(st.kinds[first]))
	sb.WriteString(" AS ")
	sb.WriteString(st.aliases[first].sqlName)

	for _, join := range st.joins {
		sb.WriteString(" ")
		sb.WriteString(join.sql)
		args = append(args, join.args...)
	}

	if whereSQL != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
		args = append(args, whereParams...)
	}
	if orderSQL != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderSQL)
		args = append(args, orderParams...)
	}

	switch {
	case desc.Limit != nil:
		sb.WriteString(" LIMIT ?")
		args = append(args, *desc.Limit)
		if desc.Offset != nil {
			sb.WriteString(" OFFSET ?")
			args = append(args, *desc.Offset)
		}
	case desc.Offset != nil:
		// sqlite has no bare OFFSET clause
		sb.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, *desc.Offset)
	}

	return &Compiled{SQL: sb.String(), Args: args, Cells: cells}, nil
}

func (st *compilation) resolveVertices() error {
	for _, v := range st.desc.Path {
		kind, err := vertexKind(v)
		if err != nil {
			return err
		}
		st.kinds[v.Tag] = kind
		st.aliases[v.Tag] = aliasInfo{
			sqlName: quoteIdent(v.Tag),
			kind:    kind,
			columns: ColumnsFor(kind),
		}
	}
	return nil
}

// vertexKind derives the entity kind behind a vertex. A vertex may
// carry several classifiers, but they must all live in one table.
func vertexKind(v queryir.VertexSpec) (entity.Kind, error) {
	kind := entity.KindForClassifier(v.EntityTypes[0])
	for _, et := range v.EntityTypes[1:] {
		if other := entity.KindForClassifier(et); other != kind {
			return "", fmt.Errorf("tag %q mixes %s and %s classifiers in one vertex", v.Tag, kind, other)
		}
	}
	return kind, nil
}

func (st *compilation) resolveJoins() error {
	for _, v := range st.desc.Path[1:] {
		rule, err := lookupJoinRule(st.kinds[v.Tag], v.JoinKeyword)
		if err != nil {
			return err
		}
		if actual := st.kinds[v.JoinTarget]; actual != rule.target {
			return &TypeMismatchError{
				Keyword:  v.JoinKeyword,
				Tag:      v.JoinTarget,
				Expected: rule.target,
				Actual:   actual,
			}
		}
		if err := st.renderJoin(v, rule); err != nil {
			return err
		}
	}
	return nil
}

func (st *compilation) renderJoin(v queryir.VertexSpec, rule joinRule) error {
	t := st.aliases[v.JoinTarget].sqlName
	n := st.aliases[v.Tag].sqlName
	table := Table(st.kinds[v.Tag])
	join := "JOIN"
	if v.OuterJoin {
		join = "LEFT JOIN"
	}

	switch rule.class {
	case joinDirect:
		st.joins = append(st.joins, fragment{
			sql: fmt.Sprintf("%s %s AS %s ON %s", join, table, n, rule.onDirect(t, n)),
		})
		st.aliases[v.EdgeTag] = aliasInfo{fk: true}

	case joinLinks, joinGroupNodes:
		edgeTable, edgeColumns := LinkTable, linkColumns
		if rule.class == joinGroupNodes {
			edgeTable, edgeColumns = GroupNodeTable, groupNodeColumns
		}
		e := quoteIdent(v.EdgeTag)
		st.joins = append(st.joins,
			fragment{sql: fmt.Sprintf("%s %s AS %s ON %s", join, edgeTable, e, rule.onEdge(t, e))},
			fragment{sql: fmt.Sprintf("%s %s AS %s ON %s", join, table, n, rule.onVertex(n, e))},
		)
		st.aliases[v.EdgeTag] = aliasInfo{sqlName: e, columns: edgeColumns}

	case joinDescendants, joinAncestors:
		return st.renderClosureJoin(v, rule)
	}
	return nil
}

// renderClosureJoin emits one recursive CTE plus the two joins hooking
// it between the target and the new vertex. The target's own filters
// are compiled a second time against the CTE-local seed alias, so the
// walk starts only from rows the outer query can produce for that tag.
func (st *compilation) renderClosureJoin(v queryir.VertexSpec, rule joinRule) error {
	withPath := st.edgeMentionsPath(v.EdgeTag)

	seed := aliasInfo{
		sqlName: closureSeedAlias,
		kind:    entity.KindNode,
		columns: ColumnsFor(entity.KindNode),
	}
	seedSQL, seedParams, err := compileFilterTree(seed, v.JoinTarget, st.desc.Filters[v.JoinTarget])
	if err != nil {
		return fmt.Errorf("closure seed filters for tag %q: %w", v.JoinTarget, err)
	}

	cte := quoteIdent(v.EdgeTag)
	sql, params := renderClosureCTE(closureSpec{
		name:       cte,
		reverse:    rule.class == joinAncestors,
		withPath:   withPath,
		seedSQL:    seedSQL,
		seedParams: seedParams,
	})
	st.ctes = append(st.ctes, fragment{sql: sql, args: params})

	t := st.aliases[v.JoinTarget].sqlName
	n := st.aliases[v.Tag].sqlName
	join := "JOIN"
	if v.OuterJoin {
		join = "LEFT JOIN"
	}
	tCol, nCol := "ancestor_id", "descendant_id"
	if rule.class == joinAncestors {
		tCol, nCol = "descendant_id", "ancestor_id"
	}
	st.joins = append(st.joins,
		fragment{sql: fmt.Sprintf("JOIN %s ON %s.%s = %s.id", cte, cte, tCol, t)},
		fragment{sql: fmt.Sprintf("%s %s AS %s ON %s.%s = %s.id", join, Table(entity.KindNode), n, cte, nCol, n)},
	)
	st.aliases[v.EdgeTag] = aliasInfo{sqlName: cte, columns: closureColumns(withPath)}
	return nil
}

// edgeMentionsPath reports whether filters or projections address the
// path column of a closure edge. Path accumulation costs one json
// array per walk row, so it renders only when something reads it.
func (st *compilation) edgeMentionsPath(edgeTag string) bool {
	for _, p := range fieldPaths(st.desc.Filters[edgeTag]) {
		if firstSegment(p) == "path" {
			return true
		}
	}
	for _, spec := range st.desc.Projections[edgeTag] {
		if firstSegment(spec.Path) == "path" {
			return true
		}
	}
	return false
}

func firstSegment(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}

type tagProjection struct {
	tag   string
	specs []queryir.ProjectionSpec
}

// orderedProjections lists the projected tags in output order: vertex
// tags in path order, then edge tags in path order. When nothing
// projects anything the last vertex yields its whole entity.
func (st *compilation) orderedProjections() []tagProjection {
	if !st.desc.HasProjections() {
		last := st.desc.Path[len(st.desc.Path)-1].Tag
		return []tagProjection{{tag: last, specs: []queryir.ProjectionSpec{{Path: queryir.ProjectEntity}}}}
	}
	var out []tagProjection
	for _, tag := range st.desc.UsedTags(true, false) {
		if specs := st.desc.Projections[tag]; len(specs) > 0 {
			out = append(out, tagProjection{tag: tag, specs: specs})
		}
	}
	for _, tag := range st.desc.UsedTags(false, true) {
		if specs := st.desc.Projections[tag]; len(specs) > 0 {
			out = append(out, tagProjection{tag: tag, specs: specs})
		}
	}
	return out
}

func (st *compilation) buildSelect() (string, []any, []Cell, error) {
	var cols []string
	var params []any
	var cells []Cell

	for _, tp := range st.orderedProjections() {
		a := st.aliases[tp.tag]
		if a.fk {
			return "", nil, nil, fmt.Errorf("tag %q joins through a foreign key and has no edge to project", tp.tag)
		}
		seen := make(map[string]bool)
		for _, spec := range tp.specs {
			if seen[spec.Path] {
				return "", nil, nil, fmt.Errorf("tag %q is projecting the same key %q multiple times", tp.tag, spec.Path)
			}
			seen[spec.Path] = true

			switch spec.Path {
			case queryir.ProjectEntity:
				if a.kind == "" {
					return "", nil, nil, fmt.Errorf("tag %q is an edge; the entity projection needs a vertex", tp.tag)
				}
				for _, col := range a.columns {
					cols = append(cols, a.sqlName+"."+col.Name)
				}
				cells = append(cells, Cell{Tag: tp.tag, Key: queryir.ProjectEntity, Kind: a.kind, IsEntity: true, Width: len(a.columns)})

			case queryir.ProjectAllColumns:
				for _, col := range a.columns {
					cols = append(cols, a.sqlName+"."+col.Name)
					shape := JSONNone
					if col.Type == ColJSON {
						shape = JSONDoc
					}
					cells = append(cells, Cell{Tag: tp.tag, Key: col.Name, Kind: a.kind, Width: 1, JSON: shape})
				}

			default:
				ref, err := resolveField(a, tp.tag, spec.Path)
				if err != nil {
					return "", nil, nil, err
				}
				expr, p := ref.valueExpr()
				expr = applyCast(expr, spec.Cast)
				if spec.Func != "" {
					expr = spec.Func + "(" + expr + ")"
				}
				cols = append(cols, expr)
				params = append(params, p...)
				cells = append(cells, Cell{Tag: tp.tag, Key: spec.Path, Kind: a.kind, Width: 1, JSON: cellJSONShape(ref, spec.Cast, spec.Func)})
			}
		}
	}
	return strings.Join(cols, ", "), params, cells, nil
}

// cellJSONShape classifies a projected field for result decoding. A
// cast other than j asks for an SQL type and suppresses decoding, as
// does count, which always yields an integer.
func cellJSONShape(ref fieldRef, cast, fn string) JSONShape {
	if !ref.isJSON() || fn == "count" {
		return JSONNone
	}
	switch cast {
	case "", "j":
	default:
		return JSONNone
	}
	if len(ref.path) == 0 {
		return JSONDoc
	}
	return JSONMaybe
}

func (st *compilation) buildWhere() (string, []any, error) {
	var parts []string
	var params []any
	for _, tag := range st.desc.UsedTags(true, true) {
		tree := st.desc.Filters[tag]
		if len(tree) == 0 {
			continue
		}
		a := st.aliases[tag]
		if a.fk {
			return "", nil, fmt.Errorf("tag %q joins through a foreign key and has no edge to filter on", tag)
		}
		sql, p, err := compileFilterTree(a, tag, tree)
		if err != nil {
			return "", nil, fmt.Errorf("filters for tag %q: %w", tag, err)
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

func (st *compilation) buildOrder() (string, []any, error) {
	var parts []string
	var params []any
	for _, spec := range st.desc.OrderBy {
		a := st.aliases[spec.Tag]
		if a.fk {
			return "", nil, fmt.Errorf("tag %q joins through a foreign key and has no edge to order by", spec.Tag)
		}
		for _, item := range spec.Items {
			ref, err := resolveField(a, spec.Tag, item.Path)
			if err != nil {
				return "", nil, err
			}
			expr, p := ref.valueExpr()
			expr = applyCast(expr, item.Cast)
			if orderIsTexty(ref, item.Cast) {
				expr += " COLLATE BINARY"
			}
			parts = append(parts, expr+" "+strings.ToUpper(item.Order))
			params = append(params, p...)
		}
	}
	return strings.Join(parts, ", "), params, nil
}

// orderIsTexty decides whether an order term needs an explicit
// collation. Casting to a numeric type defeats collation, casting to
// text forces it, otherwise the column type decides.
func orderIsTexty(ref fieldRef, cast string) bool {
	switch cast {
	case "i", "b", "f":
		return false
	case "t", "d", "j":
		return true
	}
	return ref.isTexty()
}

// applyCast coerces a projected or ordered expression. The json cast
// is the identity: json_extract already yields the stored value.
func applyCast(expr, cast string) string {
	switch cast {
	case "t", "d":
		return "CAST(" + expr + " AS TEXT)"
	case "i", "b":
		return "CAST(" + expr + " AS INTEGER)"
	case "f":
		return "CAST(" + expr + " AS REAL)"
	}
	return expr
}
