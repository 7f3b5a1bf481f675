package querysql

import (
	"fmt"
	"strings"

	"github.com/provq/provq/internal/queryir"
)

// fieldRef is a resolved field path: a quoted alias, a schema column,
// and any remaining descent into a JSON document below the column.
type fieldRef struct {
	alias  string
	column Column
	path   []string
}

func (r fieldRef) columnExpr() string {
	return r.alias + "." + r.column.Name
}

// valueExpr returns the expression producing the field value plus the
// params it binds. JSON descent binds the path as a param so user
// supplied segments never enter the SQL text.
func (r fieldRef) valueExpr() (string, []any) {
	col := r.columnExpr()
	if len(r.path) == 0 {
		return col, nil
	}
	return "json_extract(" + col + ", ?)", []any{jsonPath(r.path)}
}

// jsonArgs returns the argument list for the json_* functions that
// accept an optional path: "col" or "col, ?".
func (r fieldRef) jsonArgs() (string, []any) {
	col := r.columnExpr()
	if len(r.path) == 0 {
		return col, nil
	}
	return col + ", ?", []any{jsonPath(r.path)}
}

// isJSON reports whether the ref addresses JSON content, either a
// whole document column or a path below one.
func (r fieldRef) isJSON() bool {
	return len(r.path) > 0 || r.column.Type == ColJSON
}

// isTexty reports whether ordering on the ref compares text. Such
// order terms get an explicit collation so sort order does not depend
// on connection state.
func (r fieldRef) isTexty() bool {
	if len(r.path) > 0 {
		return true
	}
	switch r.column.Type {
	case ColText, ColTime, ColJSON:
		return true
	}
	return false
}

// resolveField maps a dotted field path onto a column of the alias.
// The first segment must name a column; further segments descend into
// a JSON document and are only legal on JSON columns.
func resolveField(a aliasInfo, tag, path string) (fieldRef, error) {
	segments := strings.Split(path, ".")
	col, ok := lookupColumn(a.columns, segments[0])
	if !ok {
		return fieldRef{}, fmt.Errorf("%q is not a field of tag %q (fields: %s)",
			segments[0], tag, strings.Join(columnNames(a.columns), ", "))
	}
	if len(segments) > 1 && col.Type != ColJSON {
		return fieldRef{}, fmt.Errorf("field %q of tag %q is not a json document, cannot descend to %q",
			segments[0], tag, path)
	}
	return fieldRef{alias: a.sqlName, column: col, path: segments[1:]}, nil
}

// compileFilterTree renders one tag's filter tree as a conjunction of
// its entries. Keys are visited in sorted order so equal trees always
// compile to identical SQL text.
func compileFilterTree(a aliasInfo, tag string, tree queryir.FilterTree) (string, []any, error) {
	if len(tree) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(tree))
	var params []any
	for _, key := range tree.SortedKeys() {
		sql, p, err := compileFilterExpr(a, tag, key, tree[key])
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

func compileFilterExpr(a aliasInfo, tag, key string, expr queryir.FilterExpr) (string, []any, error) {
	switch e := expr.(type) {
	case queryir.CombinatorExpr:
		return compileCombinator(a, tag, e)
	case queryir.FieldExpr:
		return compileFieldExpr(a, tag, e)
	default:
		return "", nil, fmt.Errorf("unknown filter entry %q (%T)", key, expr)
	}
}

// compileCombinator renders and/or over whole subtrees. An empty
// conjunction holds vacuously, an empty disjunction never holds.
func compileCombinator(a aliasInfo, tag string, e queryir.CombinatorExpr) (string, []any, error) {
	joiner := " AND "
	empty := "1 = 1"
	if e.Op == "or" {
		joiner = " OR "
		empty = "0 = 1"
	}

	sql := empty
	var params []any
	if len(e.Terms) > 0 {
		parts := make([]string, 0, len(e.Terms))
		for _, term := range e.Terms {
			sub, p, err := compileFilterTree(a, tag, term)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sub+")")
			params = append(params, p...)
		}
		sql = "(" + strings.Join(parts, joiner) + ")"
	}
	if e.Negate {
		sql = "NOT (" + sql + ")"
	}
	return sql, params, nil
}

func compileFieldExpr(a aliasInfo, tag string, e queryir.FieldExpr) (string, []any, error) {
	ref, err := resolveField(a, tag, e.Path)
	if err != nil {
		return "", nil, err
	}
	parts := make([]string, 0, len(e.Ops))
	var params []any
	for _, op := range e.Ops {
		sql, p, err := compileOpSpec(ref, e.Path, op)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	// An empty operator map constrains nothing.
	if len(parts) == 0 {
		return "1 = 1", nil, nil
	}
	sql := strings.Join(parts, " AND ")
	if len(parts) > 1 {
		sql = "(" + sql + ")"
	}
	return sql, params, nil
}

func compileOpSpec(ref fieldRef, path string, op queryir.OpSpec) (string, []any, error) {
	switch o := op.(type) {
	case queryir.OpCondition:
		return compileCondition(ref, path, o)
	case queryir.OpAnd:
		return compileOpGroup(ref, path, o.Terms, " AND ", "1 = 1")
	case queryir.OpOr:
		return compileOpGroup(ref, path, o.Terms, " OR ", "0 = 1")
	default:
		return "", nil, fmt.Errorf("unknown operator spec %T on %q", op, path)
	}
}

// compileOpGroup renders a boolean grouping of operator specs. An empty
// conjunction holds vacuously, an empty disjunction never holds.
func compileOpGroup(ref fieldRef, path string, terms []queryir.OpSpec, joiner, empty string) (string, []any, error) {
	if len(terms) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(terms))
	var params []any
	for _, term := range terms {
		sql, p, err := compileOpSpec(ref, path, term)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, joiner) + ")", params, nil
}

func compileCondition(ref fieldRef, path string, cond queryir.OpCondition) (string, []any, error) {
	sql, params, err := compileBareCondition(ref, path, cond)
	if err != nil {
		return "", nil, err
	}
	if cond.Negate {
		sql = "NOT (" + sql + ")"
	}
	return sql, params, nil
}

func compileBareCondition(ref fieldRef, path string, cond queryir.OpCondition) (string, []any, error) {
	switch cond.Operator {
	case "==":
		expr, p := ref.valueExpr()
		if cond.Value == nil {
			return expr + " IS NULL", p, nil
		}
		v, err := scalarParam(cond.Operator, path, cond.Value)
		if err != nil {
			return "", nil, err
		}
		return expr + " = ?", append(p, v), nil

	case "<", "<=", ">", ">=":
		expr, p := ref.valueExpr()
		v, err := scalarParam(cond.Operator, path, cond.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", expr, cond.Operator), append(p, v), nil

	case "like":
		expr, p := ref.valueExpr()
		pattern, ok := cond.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("operator like on %q wants a string pattern, got %T", path, cond.Value)
		}
		return expr + ` LIKE ? ESCAPE '\'`, append(p, pattern), nil

	case "ilike":
		expr, p := ref.valueExpr()
		pattern, ok := cond.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("operator ilike on %q wants a string pattern, got %T", path, cond.Value)
		}
		return fmt.Sprintf(`lower(%s) LIKE lower(?) ESCAPE '\'`, expr), append(p, pattern), nil

	case "in":
		expr, p := ref.valueExpr()
		list, ok := toAnySlice(cond.Value)
		if !ok || len(list) == 0 {
			return "", nil, fmt.Errorf("operator in on %q wants a non-empty list, got %T", path, cond.Value)
		}
		params := p
		for _, item := range list {
			v, err := scalarParam(cond.Operator, path, item)
			if err != nil {
				return "", nil, err
			}
			params = append(params, v)
		}
		return fmt.Sprintf("%s IN (%s)", expr, placeholderList(len(list))), params, nil

	case "of_type":
		args, p, err := jsonOperand(ref, path, cond.Operator)
		if err != nil {
			return "", nil, err
		}
		class, ok := cond.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("operator of_type on %q wants a type name, got %T", path, cond.Value)
		}
		switch class {
		case "object", "array", "null":
			return fmt.Sprintf("json_type(%s) = '%s'", args, class), p, nil
		case "string":
			return fmt.Sprintf("json_type(%s) = 'text'", args), p, nil
		case "number":
			return fmt.Sprintf("json_type(%s) IN ('integer', 'real')", args), p, nil
		case "boolean":
			return fmt.Sprintf("json_type(%s) IN ('true', 'false')", args), p, nil
		default:
			return "", nil, fmt.Errorf("operator of_type on %q: unknown type name %q", path, class)
		}

	case "of_length", "longer", "shorter":
		args, p, err := jsonOperand(ref, path, cond.Operator)
		if err != nil {
			return "", nil, err
		}
		n, ok := intValue(cond.Value)
		if !ok {
			return "", nil, fmt.Errorf("operator %s on %q wants an integer length, got %T", cond.Operator, path, cond.Value)
		}
		cmp := map[string]string{"of_length": "=", "longer": ">", "shorter": "<"}[cond.Operator]
		return fmt.Sprintf("json_array_length(%s) %s ?", args, cmp), append(p, n), nil

	case "contains":
		args, p, err := jsonOperand(ref, path, cond.Operator)
		if err != nil {
			return "", nil, err
		}
		list, ok := toAnySlice(cond.Value)
		if !ok {
			return "", nil, fmt.Errorf("operator contains on %q wants a list, got %T", path, cond.Value)
		}
		// Containment of the empty list holds for every value.
		if len(list) == 0 {
			return "1 = 1", nil, nil
		}
		// One EXISTS per element; each repeats the bound json path.
		parts := make([]string, 0, len(list))
		var params []any
		for _, item := range list {
			v, err := scalarParam(cond.Operator, path, item)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", args))
			params = append(params, p...)
			params = append(params, v)
		}
		sql := strings.Join(parts, " AND ")
		if len(parts) != 1 {
			sql = "(" + sql + ")"
		}
		return sql, params, nil

	case "has_key":
		args, p, err := jsonOperand(ref, path, cond.Operator)
		if err != nil {
			return "", nil, err
		}
		key, ok := cond.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("operator has_key on %q wants a string key, got %T", path, cond.Value)
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.key = ?)", args), append(p, key), nil

	default:
		return "", nil, fmt.Errorf("unknown operator %q on %q", cond.Operator, path)
	}
}

// jsonOperand guards the JSON-only operators: they apply to document
// columns or paths below them, never to plain columns.
func jsonOperand(ref fieldRef, path, operator string) (string, []any, error) {
	if !ref.isJSON() {
		return "", nil, fmt.Errorf("operator %s on %q: field is not a json document", operator, path)
	}
	args, p := ref.jsonArgs()
	return args, p, nil
}

// scalarParam admits the value types the driver can bind and compare.
// Maps and lists have no comparable rendering in sqlite, so equality
// on whole documents is rejected rather than silently never matching.
func scalarParam(operator, path string, v any) (any, error) {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case nil:
		return nil, fmt.Errorf("operator %s on %q does not accept null", operator, path)
	default:
		return nil, fmt.Errorf("operator %s on %q does not accept %T values", operator, path, v)
	}
}

func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func toAnySlice(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, f := range list {
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// fieldPaths collects every field path a tree references, descending
// through combinators. Used to decide whether a closure edge needs
// path tracking.
func fieldPaths(tree queryir.FilterTree) []string {
	var out []string
	for _, key := range tree.SortedKeys() {
		switch e := tree[key].(type) {
		case queryir.CombinatorExpr:
			for _, term := range e.Terms {
				out = append(out, fieldPaths(term)...)
			}
		case queryir.FieldExpr:
			out = append(out, e.Path)
		}
	}
	return out
}
