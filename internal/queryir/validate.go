package queryir

import (
	"fmt"
	"strings"
)

// Validate checks a description's structural consistency ahead of
// compilation: the path joins only to earlier tags, every filter,
// projection and ordering references a tag the path defines, and all
// enum-valued fields hold known values.
//
// Descriptions built through the builder are valid by construction;
// Validate guards descriptions assembled from wire input or by hand.
func (d *Description) Validate() error {
	v := &validator{
		vertexTags: map[string]bool{},
		edgeTags:   map[string]bool{},
	}
	if err := v.validatePath(d.Path); err != nil {
		return err
	}
	if err := v.validateFilters(d.Filters); err != nil {
		return err
	}
	if err := v.validateProjections(d.Projections); err != nil {
		return err
	}
	if err := v.validateOrderBy(d.OrderBy); err != nil {
		return err
	}
	return v.validateCounts(d.Limit, d.Offset)
}

// validator tracks the tags seen so far while walking the path.
type validator struct {
	vertexTags map[string]bool
	edgeTags   map[string]bool
}

func (v *validator) knownTag(tag string) bool {
	return v.vertexTags[tag] || v.edgeTags[tag]
}

func (v *validator) validatePath(path []VertexSpec) error {
	if len(path) == 0 {
		return fmt.Errorf("empty path: at least one entity must be appended")
	}
	for i, vertex := range path {
		if err := v.validateVertex(i, vertex); err != nil {
			return fmt.Errorf("path entry [%d]: %w", i, err)
		}
	}
	return nil
}

func (v *validator) validateVertex(i int, vertex VertexSpec) error {
	if len(vertex.EntityTypes) == 0 {
		return fmt.Errorf("no entity type")
	}
	for _, t := range vertex.EntityTypes {
		if t == "" {
			return fmt.Errorf("empty entity type")
		}
	}
	if vertex.Tag == "" {
		return fmt.Errorf("empty tag")
	}
	if strings.Contains(vertex.Tag, EdgeTagDelimiter) {
		return fmt.Errorf("tag %q contains the edge delimiter %q", vertex.Tag, EdgeTagDelimiter)
	}
	if v.knownTag(vertex.Tag) {
		return fmt.Errorf("tag %q is already in use", vertex.Tag)
	}

	if i == 0 {
		if vertex.JoinKeyword != "" || vertex.JoinTarget != "" || vertex.EdgeTag != "" {
			return fmt.Errorf("the first entity cannot join to an earlier one")
		}
		v.vertexTags[vertex.Tag] = true
		return nil
	}

	if vertex.JoinKeyword == JoinDirection {
		return fmt.Errorf("the direction keyword is resolved when appending; stored paths use %s or %s",
			JoinWithIncoming, JoinWithOutgoing)
	}
	if !vertex.JoinKeyword.IsValid() {
		return fmt.Errorf("unknown joining keyword %q", vertex.JoinKeyword)
	}
	if !v.vertexTags[vertex.JoinTarget] {
		return fmt.Errorf("joins to unknown tag %q", vertex.JoinTarget)
	}
	if vertex.EdgeTag == "" {
		return fmt.Errorf("empty edge tag")
	}
	if v.knownTag(vertex.EdgeTag) {
		return fmt.Errorf("edge tag %q is already in use", vertex.EdgeTag)
	}

	v.vertexTags[vertex.Tag] = true
	v.edgeTags[vertex.EdgeTag] = true
	return nil
}

func (v *validator) validateFilters(filters map[string]FilterTree) error {
	for _, tag := range sortedKeys(filters) {
		if !v.knownTag(tag) {
			return fmt.Errorf("filter on unknown tag %q", tag)
		}
		if err := v.validateFilterTree(filters[tag]); err != nil {
			return fmt.Errorf("filter on %q: %w", tag, err)
		}
	}
	return nil
}

func (v *validator) validateFilterTree(tree FilterTree) error {
	for _, key := range tree.SortedKeys() {
		if err := v.validateFilterExpr(tree[key]); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
	}
	return nil
}

func (v *validator) validateFilterExpr(expr FilterExpr) error {
	switch e := expr.(type) {
	case CombinatorExpr:
		if e.Op != "and" && e.Op != "or" {
			return fmt.Errorf("unknown combinator %q", e.Op)
		}
		for i, term := range e.Terms {
			if err := v.validateFilterTree(term); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case FieldExpr:
		if e.Path == "" {
			return fmt.Errorf("empty field path")
		}
		for _, op := range e.Ops {
			if err := v.validateOpSpec(op); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown filter expression %T", expr)
	}
}

func (v *validator) validateOpSpec(op OpSpec) error {
	switch o := op.(type) {
	case OpCondition:
		if !ValidOperators[o.Operator] {
			return fmt.Errorf("unknown operator %q", o.Operator)
		}
		return nil
	case OpAnd:
		for _, term := range o.Terms {
			if err := v.validateOpSpec(term); err != nil {
				return err
			}
		}
		return nil
	case OpOr:
		for _, term := range o.Terms {
			if err := v.validateOpSpec(term); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown operator spec %T", op)
	}
}

func (v *validator) validateProjections(projections map[string][]ProjectionSpec) error {
	for _, tag := range sortedKeys(projections) {
		if !v.knownTag(tag) {
			return fmt.Errorf("projection on unknown tag %q", tag)
		}
		for i, spec := range projections[tag] {
			if err := validateProjectionSpec(spec); err != nil {
				return fmt.Errorf("projection on %q [%d]: %w", tag, i, err)
			}
		}
	}
	return nil
}

func (v *validator) validateOrderBy(orderBy []OrderSpec) error {
	for _, spec := range orderBy {
		if !v.knownTag(spec.Tag) {
			return fmt.Errorf("ordering on unknown tag %q", spec.Tag)
		}
		for i, item := range spec.Items {
			if err := validateOrderItem(item); err != nil {
				return fmt.Errorf("ordering on %q [%d]: %w", spec.Tag, i, err)
			}
		}
	}
	return nil
}

func (v *validator) validateCounts(limit, offset *int64) error {
	if limit != nil && *limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", *limit)
	}
	if offset != nil && *offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", *offset)
	}
	return nil
}
