package queryir

import (
	"fmt"
)

// ParseProjections converts one tag's wire-form projection list into
// specs. Accepted item shapes:
//
//   - "attributes.energy"                      bare path
//   - {"path": "ctime", "func": "max"}         flat form
//   - {"ctime": {"func": "max", "cast": "d"}}  historical nested form
//
// A bare list flattens one level, so {"project": ["id", "uuid"]} and
// {"project": [["id", "uuid"]]} describe the same projection.
func ParseProjections(wire any) ([]ProjectionSpec, error) {
	items, err := flattenProjectionItems(wire)
	if err != nil {
		return nil, err
	}
	specs := make([]ProjectionSpec, 0, len(items))
	for i, item := range items {
		spec, err := parseProjectionItem(item)
		if err != nil {
			return nil, fmt.Errorf("projection [%d]: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func flattenProjectionItems(wire any) ([]any, error) {
	list, ok := asSlice(wire)
	if !ok {
		return []any{wire}, nil
	}
	var items []any
	for _, elem := range list {
		if inner, ok := asSlice(elem); ok {
			items = append(items, inner...)
			continue
		}
		items = append(items, elem)
	}
	return items, nil
}

func parseProjectionItem(item any) (ProjectionSpec, error) {
	switch v := item.(type) {
	case string:
		return ProjectionSpec{Path: v}, nil
	case map[string]any, map[any]any:
		m, err := toStringMap(v)
		if err != nil {
			return ProjectionSpec{}, err
		}
		if _, ok := m["path"]; ok {
			return parseFlatProjection(m)
		}
		return parseNestedProjection(m)
	default:
		return ProjectionSpec{}, fmt.Errorf("expected a path or a mapping, got %T", item)
	}
}

func parseFlatProjection(m map[string]any) (ProjectionSpec, error) {
	spec := ProjectionSpec{}
	for key, value := range m {
		s, ok := value.(string)
		if !ok {
			return ProjectionSpec{}, fmt.Errorf("option %q expects a string, got %T", key, value)
		}
		switch key {
		case "path":
			spec.Path = s
		case "func":
			spec.Func = s
		case "cast":
			spec.Cast = s
		default:
			return ProjectionSpec{}, fmt.Errorf("unknown projection option %q", key)
		}
	}
	return spec, validateProjectionSpec(spec)
}

func parseNestedProjection(m map[string]any) (ProjectionSpec, error) {
	if len(m) != 1 {
		return ProjectionSpec{}, fmt.Errorf("nested projection expects exactly one path key, got %d", len(m))
	}
	spec := ProjectionSpec{}
	for path, options := range m {
		spec.Path = path
		opts, err := toStringMap(options)
		if err != nil {
			return ProjectionSpec{}, fmt.Errorf("path %q: options must be a mapping: %w", path, err)
		}
		for key, value := range opts {
			s, ok := value.(string)
			if !ok {
				return ProjectionSpec{}, fmt.Errorf("path %q: option %q expects a string, got %T", path, key, value)
			}
			switch key {
			case "func":
				spec.Func = s
			case "cast":
				spec.Cast = s
			default:
				return ProjectionSpec{}, fmt.Errorf("path %q: unknown projection option %q", path, key)
			}
		}
	}
	return spec, validateProjectionSpec(spec)
}

func validateProjectionSpec(spec ProjectionSpec) error {
	if spec.Path == "" {
		return fmt.Errorf("projection path must not be empty")
	}
	if spec.Func != "" && !ValidProjectionFuncs[spec.Func] {
		return fmt.Errorf("unknown projection function %q", spec.Func)
	}
	if spec.Cast != "" && !ValidProjectionCasts[spec.Cast] {
		return fmt.Errorf("unknown projection cast %q", spec.Cast)
	}
	if spec.Path == ProjectEntity && spec.Func != "" {
		return fmt.Errorf("the entity projection %q does not accept a function", ProjectEntity)
	}
	return nil
}

// ProjectionsToWire serializes specs in the flat form. Bare paths stay
// strings so round-tripped descriptions keep their familiar shape.
func ProjectionsToWire(specs []ProjectionSpec) []any {
	out := make([]any, len(specs))
	for i, spec := range specs {
		if spec.Func == "" && spec.Cast == "" {
			out[i] = spec.Path
			continue
		}
		m := map[string]any{"path": spec.Path}
		if spec.Func != "" {
			m["func"] = spec.Func
		}
		if spec.Cast != "" {
			m["cast"] = spec.Cast
		}
		out[i] = m
	}
	return out
}

// CopyProjections returns an independent copy of the spec list.
func CopyProjections(specs []ProjectionSpec) []ProjectionSpec {
	out := make([]ProjectionSpec, len(specs))
	copy(out, specs)
	return out
}
