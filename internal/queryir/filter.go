package queryir

import (
	"fmt"
	"sort"
	"strings"
)

// FilterTree is one tag's filter state: top-level keys mapping to
// expressions, all ANDed together. Keys are either boolean combinators
// ("and", "or" and their negated spellings) or field paths. AddFilter
// merges trees by replacing whole keys, so re-filtering a field
// overrides the previous spec for that field and nothing else.
type FilterTree map[string]FilterExpr

// FilterExpr is a sealed interface: a tree entry is either a combinator
// over subtrees or a field's operator spec.
type FilterExpr interface {
	filterExpr() // sealed
}

// CombinatorExpr combines whole subtrees with AND or OR, optionally
// negated. It carries the subtrees in declaration order.
type CombinatorExpr struct {
	Op     string // "and" or "or"
	Negate bool
	Terms  []FilterTree
}

func (CombinatorExpr) filterExpr() {}

// FieldExpr holds one field's operator specs, all ANDed. Path is the
// column name, optionally dotted into semi-structured storage
// ("attributes.energy.value").
type FieldExpr struct {
	Path string
	Ops  []OpSpec
}

func (FieldExpr) filterExpr() {}

// OpSpec is a sealed interface over a field's operator grammar: a
// concrete condition or a boolean grouping of conditions.
type OpSpec interface {
	opSpec() // sealed
}

// OpCondition is one operator applied to one value, optionally negated
// (the "!" prefix in wire form).
type OpCondition struct {
	Operator string
	Negate   bool
	Value    any
}

func (OpCondition) opSpec() {}

// OpAnd groups operator specs that must all hold.
type OpAnd struct {
	Terms []OpSpec
}

func (OpAnd) opSpec() {}

// OpOr groups operator specs of which at least one must hold.
type OpOr struct {
	Terms []OpSpec
}

func (OpOr) opSpec() {}

// ValidOperators defines the operator set after "!" stripping.
var ValidOperators = map[string]bool{
	"==":        true,
	"<":         true,
	"<=":        true,
	">":         true,
	">=":        true,
	"like":      true,
	"ilike":     true,
	"in":        true,
	"of_type":   true,
	"of_length": true,
	"longer":    true,
	"shorter":   true,
	"contains":  true,
	"has_key":   true,
}

// combinatorSpellings maps wire combinator keys to (op, negate).
var combinatorSpellings = map[string]struct {
	op     string
	negate bool
}{
	"and":  {"and", false},
	"or":   {"or", false},
	"~and": {"and", true},
	"~or":  {"or", true},
	"!and": {"and", true},
	"!or":  {"or", true},
}

// IsCombinatorKey reports whether key names a boolean combinator rather
// than a field path.
func IsCombinatorKey(key string) bool {
	_, ok := combinatorSpellings[key]
	return ok
}

// ParseFilterTree converts a wire-form filter (a map of combinators and
// field specs) into a typed tree. A non-map value under a field key is
// shorthand for equality.
func ParseFilterTree(wire any) (FilterTree, error) {
	m, err := toStringMap(wire)
	if err != nil {
		return nil, fmt.Errorf("filter must be a mapping: %w", err)
	}

	tree := FilterTree{}
	for key, value := range m {
		if spelling, ok := combinatorSpellings[key]; ok {
			terms, err := parseCombinatorTerms(value)
			if err != nil {
				return nil, fmt.Errorf("combinator %q: %w", key, err)
			}
			tree[key] = CombinatorExpr{Op: spelling.op, Negate: spelling.negate, Terms: terms}
			continue
		}

		ops, err := parseOpSpecs(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		tree[key] = FieldExpr{Path: key, Ops: ops}
	}
	return tree, nil
}

func parseCombinatorTerms(value any) ([]FilterTree, error) {
	list, ok := asSlice(value)
	if !ok {
		return nil, fmt.Errorf("expected a list of filters, got %T", value)
	}
	terms := make([]FilterTree, 0, len(list))
	for i, elem := range list {
		sub, err := ParseFilterTree(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		terms = append(terms, sub)
	}
	return terms, nil
}

// parseOpSpecs parses one field's value: either a bare value (implicit
// equality) or a map of operators, possibly containing nested "and"/"or"
// groupings of further operator maps.
func parseOpSpecs(value any) ([]OpSpec, error) {
	m, err := toStringMap(value)
	if err != nil {
		// bare value: implicit equality
		return []OpSpec{OpCondition{Operator: "==", Value: value}}, nil
	}

	ops := make([]OpSpec, 0, len(m))
	for _, operator := range sortedKeys(m) {
		operand := m[operator]
		switch operator {
		case "and", "or":
			list, ok := asSlice(operand)
			if !ok {
				return nil, fmt.Errorf("operator grouping %q expects a list, got %T", operator, operand)
			}
			var terms []OpSpec
			for i, elem := range list {
				sub, err := parseOpSpecs(elem)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", operator, i, err)
				}
				terms = append(terms, groupOps(sub))
			}
			if operator == "and" {
				ops = append(ops, OpAnd{Terms: terms})
			} else {
				ops = append(ops, OpOr{Terms: terms})
			}
		default:
			condition, err := parseCondition(operator, operand)
			if err != nil {
				return nil, err
			}
			ops = append(ops, condition)
		}
	}
	return ops, nil
}

func groupOps(ops []OpSpec) OpSpec {
	if len(ops) == 1 {
		return ops[0]
	}
	return OpAnd{Terms: ops}
}

func parseCondition(operator string, value any) (OpCondition, error) {
	negate := strings.HasPrefix(operator, "!")
	stripped := strings.TrimLeft(operator, "!")
	if !ValidOperators[stripped] {
		return OpCondition{}, fmt.Errorf("unknown operator %q", operator)
	}

	switch stripped {
	case "like", "ilike":
		if _, ok := value.(string); !ok {
			return OpCondition{}, fmt.Errorf("operator %q expects a string pattern, got %T", operator, value)
		}
	case "in", "contains":
		list, ok := asSlice(value)
		if !ok {
			return OpCondition{}, fmt.Errorf("operator %q expects a list, got %T", operator, value)
		}
		if stripped == "in" {
			if len(list) == 0 {
				return OpCondition{}, fmt.Errorf("operator %q expects a non-empty list", operator)
			}
			if !homogeneousList(list) {
				return OpCondition{}, fmt.Errorf("operator %q expects a homogeneous list", operator)
			}
		}
		value = list
	case "has_key", "of_type":
		if _, ok := value.(string); !ok {
			return OpCondition{}, fmt.Errorf("operator %q expects a string, got %T", operator, value)
		}
	}
	return OpCondition{Operator: stripped, Negate: negate, Value: value}, nil
}

// homogeneousList reports whether all elements share one value class.
// Integer widths count as one class, as do the float widths.
func homogeneousList(list []any) bool {
	class := func(v any) string {
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return "int"
		case float32, float64:
			return "float"
		case string:
			return "string"
		case bool:
			return "bool"
		default:
			return fmt.Sprintf("%T", v)
		}
	}
	first := class(list[0])
	for _, elem := range list[1:] {
		if class(elem) != first {
			return false
		}
	}
	return true
}

// Merge applies other on top of the tree, replacing whole keys.
func (t FilterTree) Merge(other FilterTree) {
	for key, expr := range other {
		t[key] = expr
	}
}

// DeepCopy returns an independent copy of the tree.
func (t FilterTree) DeepCopy() FilterTree {
	out := make(FilterTree, len(t))
	for key, expr := range t {
		out[key] = copyFilterExpr(expr)
	}
	return out
}

func copyFilterExpr(expr FilterExpr) FilterExpr {
	switch e := expr.(type) {
	case CombinatorExpr:
		terms := make([]FilterTree, len(e.Terms))
		for i, term := range e.Terms {
			terms[i] = term.DeepCopy()
		}
		return CombinatorExpr{Op: e.Op, Negate: e.Negate, Terms: terms}
	case FieldExpr:
		ops := make([]OpSpec, len(e.Ops))
		for i, op := range e.Ops {
			ops[i] = copyOpSpec(op)
		}
		return FieldExpr{Path: e.Path, Ops: ops}
	default:
		return expr
	}
}

func copyOpSpec(op OpSpec) OpSpec {
	switch o := op.(type) {
	case OpCondition:
		return OpCondition{Operator: o.Operator, Negate: o.Negate, Value: copyWireValue(o.Value)}
	case OpAnd:
		return OpAnd{Terms: copyOpSpecs(o.Terms)}
	case OpOr:
		return OpOr{Terms: copyOpSpecs(o.Terms)}
	default:
		return op
	}
}

func copyOpSpecs(ops []OpSpec) []OpSpec {
	out := make([]OpSpec, len(ops))
	for i, op := range ops {
		out[i] = copyOpSpec(op)
	}
	return out
}

func copyWireValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyWireValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = copyWireValue(elem)
		}
		return out
	default:
		return v
	}
}

// ToWire converts the tree back to its serialized form.
func (t FilterTree) ToWire() map[string]any {
	out := make(map[string]any, len(t))
	for key, expr := range t {
		out[key] = filterExprToWire(expr)
	}
	return out
}

func filterExprToWire(expr FilterExpr) any {
	switch e := expr.(type) {
	case CombinatorExpr:
		terms := make([]any, len(e.Terms))
		for i, term := range e.Terms {
			terms[i] = term.ToWire()
		}
		return terms
	case FieldExpr:
		ops := make(map[string]any, len(e.Ops))
		for _, op := range e.Ops {
			k, v := opSpecToWire(op)
			ops[k] = v
		}
		return ops
	default:
		return nil
	}
}

func opSpecToWire(op OpSpec) (string, any) {
	switch o := op.(type) {
	case OpCondition:
		key := o.Operator
		if o.Negate {
			key = "!" + key
		}
		return key, o.Value
	case OpAnd:
		return "and", opTermsToWire(o.Terms)
	case OpOr:
		return "or", opTermsToWire(o.Terms)
	default:
		return "", nil
	}
}

func opTermsToWire(terms []OpSpec) []any {
	out := make([]any, len(terms))
	for i, term := range terms {
		k, v := opSpecToWire(term)
		out[i] = map[string]any{k: v}
	}
	return out
}

// SortedKeys returns the tree's keys sorted, for deterministic
// compilation order.
func (t FilterTree) SortedKeys() []string {
	return sortedKeys(t)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toStringMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case FilterTree:
		return nil, fmt.Errorf("already parsed")
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, elem := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("key %v (%T) is not a string", k, k)
			}
			out[ks] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("got %T", v)
	}
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, elem := range s {
			out[i] = elem
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, elem := range s {
			out[i] = int64(elem)
		}
		return out, true
	case []int64:
		out := make([]any, len(s))
		for i, elem := range s {
			out[i] = elem
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, elem := range s {
			out[i] = elem
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, elem := range s {
			out[i] = elem
		}
		return out, true
	default:
		return nil, false
	}
}
