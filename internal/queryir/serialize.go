package queryir

import (
	"encoding/json"
	"fmt"
	"math"
)

// Wire keys of a serialized description.
const (
	wireKeyPath     = "path"
	wireKeyFilters  = "filters"
	wireKeyProject  = "project"
	wireKeyOrderBy  = "order_by"
	wireKeyLimit    = "limit"
	wireKeyOffset   = "offset"
	wireKeyDistinct = "distinct"
)

// ParseDescription converts a decoded wire mapping (from JSON or YAML)
// into a Description. Unknown top-level keys are rejected so typos in
// hand-written query files fail loudly.
func ParseDescription(wire map[string]any) (*Description, error) {
	desc := NewDescription()
	for key, value := range wire {
		var err error
		switch key {
		case wireKeyPath:
			desc.Path, err = parsePath(value)
		case wireKeyFilters:
			desc.Filters, err = parseFilterMap(value)
		case wireKeyProject:
			desc.Projections, err = parseProjectionMap(value)
		case wireKeyOrderBy:
			desc.OrderBy, err = parseOrderBy(value)
		case wireKeyLimit:
			desc.Limit, err = parseOptionalCount(value)
		case wireKeyOffset:
			desc.Offset, err = parseOptionalCount(value)
		case wireKeyDistinct:
			b, ok := value.(bool)
			if !ok {
				err = fmt.Errorf("expected a boolean, got %T", value)
			}
			desc.Distinct = b
		default:
			err = fmt.Errorf("unknown key")
		}
		if err != nil {
			return nil, fmt.Errorf("query description %q: %w", key, err)
		}
	}
	return desc, nil
}

func parsePath(wire any) ([]VertexSpec, error) {
	list, ok := asSlice(wire)
	if !ok {
		return nil, fmt.Errorf("expected a list of path entries, got %T", wire)
	}
	path := make([]VertexSpec, 0, len(list))
	for i, elem := range list {
		entry, err := parsePathEntry(elem, i == 0)
		if err != nil {
			return nil, fmt.Errorf("entry [%d]: %w", i, err)
		}
		path = append(path, entry)
	}
	return path, nil
}

func parsePathEntry(wire any, first bool) (VertexSpec, error) {
	m, err := toStringMap(wire)
	if err != nil {
		return VertexSpec{}, fmt.Errorf("expected a mapping: %w", err)
	}

	spec := VertexSpec{}
	for key, value := range m {
		switch key {
		case "entity_type":
			spec.EntityTypes, err = parseEntityTypes(value)
		case "tag":
			spec.Tag, err = requireString(key, value)
		case "joining_keyword":
			var kw string
			kw, err = requireString(key, value)
			spec.JoinKeyword = JoinKeyword(kw)
		case "joining_value":
			spec.JoinTarget, err = requireString(key, value)
		case "edge_tag":
			spec.EdgeTag, err = requireString(key, value)
		case "outerjoin":
			b, ok := value.(bool)
			if !ok {
				err = fmt.Errorf("%q expects a boolean, got %T", key, value)
			}
			spec.OuterJoin = b
		default:
			err = fmt.Errorf("unknown path entry key %q", key)
		}
		if err != nil {
			return VertexSpec{}, err
		}
	}

	if len(spec.EntityTypes) == 0 {
		return VertexSpec{}, fmt.Errorf("missing entity_type")
	}
	if spec.Tag == "" {
		return VertexSpec{}, fmt.Errorf("missing tag")
	}
	if first && (spec.JoinKeyword != "" || spec.JoinTarget != "" || spec.EdgeTag != "") {
		return VertexSpec{}, fmt.Errorf("the first path entry cannot join to an earlier one")
	}
	if !first {
		if spec.JoinKeyword == "" || spec.JoinTarget == "" {
			return VertexSpec{}, fmt.Errorf("missing joining_keyword or joining_value")
		}
		if spec.EdgeTag == "" {
			return VertexSpec{}, fmt.Errorf("missing edge_tag")
		}
	}
	return spec, nil
}

func parseEntityTypes(value any) ([]string, error) {
	if s, ok := value.(string); ok {
		return []string{s}, nil
	}
	list, ok := asSlice(value)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("entity_type expects a string or a non-empty list, got %T", value)
	}
	types := make([]string, len(list))
	for i, elem := range list {
		s, ok := elem.(string)
		if !ok {
			return nil, fmt.Errorf("entity_type[%d] expects a string, got %T", i, elem)
		}
		types[i] = s
	}
	return types, nil
}

func parseFilterMap(wire any) (map[string]FilterTree, error) {
	m, err := toStringMap(wire)
	if err != nil {
		return nil, fmt.Errorf("expected a mapping of tag to filter: %w", err)
	}
	out := make(map[string]FilterTree, len(m))
	for tag, value := range m {
		tree, err := ParseFilterTree(value)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", tag, err)
		}
		out[tag] = tree
	}
	return out, nil
}

func parseProjectionMap(wire any) (map[string][]ProjectionSpec, error) {
	m, err := toStringMap(wire)
	if err != nil {
		return nil, fmt.Errorf("expected a mapping of tag to projections: %w", err)
	}
	out := make(map[string][]ProjectionSpec, len(m))
	for tag, value := range m {
		specs, err := ParseProjections(value)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", tag, err)
		}
		out[tag] = specs
	}
	return out, nil
}

func parseOrderBy(wire any) ([]OrderSpec, error) {
	list, ok := asSlice(wire)
	if !ok {
		list = []any{wire}
	}
	var specs []OrderSpec
	for i, elem := range list {
		m, err := toStringMap(elem)
		if err != nil {
			return nil, fmt.Errorf("entry [%d]: expected a mapping of tag to order items: %w", i, err)
		}
		for _, tag := range sortedKeys(m) {
			items, err := ParseOrderItems(m[tag])
			if err != nil {
				return nil, fmt.Errorf("tag %q: %w", tag, err)
			}
			specs = append(specs, OrderSpec{Tag: tag, Items: items})
		}
	}
	return specs, nil
}

func parseOptionalCount(value any) (*int64, error) {
	if value == nil {
		return nil, nil
	}
	n, err := toInt64(value)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func toInt64(value any) (int64, error) {
	switch n := value.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("expected an integer, got %T", value)
	}
}

func requireString(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%q expects a string, got %T", key, value)
	}
	return s, nil
}

// ToWire serializes the description. The inverse of ParseDescription:
// parsing the result yields an equivalent description.
func (d *Description) ToWire() map[string]any {
	path := make([]any, len(d.Path))
	for i, vertex := range d.Path {
		entry := map[string]any{
			"tag":         vertex.Tag,
			"entity_type": entityTypesToWire(vertex.EntityTypes),
		}
		if i > 0 {
			entry["joining_keyword"] = string(vertex.JoinKeyword)
			entry["joining_value"] = vertex.JoinTarget
			entry["edge_tag"] = vertex.EdgeTag
			entry["outerjoin"] = vertex.OuterJoin
		}
		path[i] = entry
	}

	filters := make(map[string]any, len(d.Filters))
	for tag, tree := range d.Filters {
		filters[tag] = tree.ToWire()
	}

	projections := make(map[string]any, len(d.Projections))
	for tag, specs := range d.Projections {
		projections[tag] = ProjectionsToWire(specs)
	}

	orderBy := make([]any, len(d.OrderBy))
	for i, spec := range d.OrderBy {
		orderBy[i] = map[string]any{spec.Tag: OrderItemsToWire(spec.Items)}
	}

	return map[string]any{
		wireKeyPath:     path,
		wireKeyFilters:  filters,
		wireKeyProject:  projections,
		wireKeyOrderBy:  orderBy,
		wireKeyLimit:    optionalCountToWire(d.Limit),
		wireKeyOffset:   optionalCountToWire(d.Offset),
		wireKeyDistinct: d.Distinct,
	}
}

func entityTypesToWire(types []string) any {
	if len(types) == 1 {
		return types[0]
	}
	out := make([]any, len(types))
	for i, t := range types {
		out[i] = t
	}
	return out
}

func optionalCountToWire(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
