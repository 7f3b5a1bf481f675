package queryir

// JoinKeyword names the relationship between a vertex and its join
// target. The wire strings are part of the serialized format.
type JoinKeyword string

const (
	JoinWithIncoming    JoinKeyword = "with_incoming"
	JoinWithOutgoing    JoinKeyword = "with_outgoing"
	JoinWithAncestors   JoinKeyword = "with_ancestors"
	JoinWithDescendants JoinKeyword = "with_descendants"
	JoinWithGroup       JoinKeyword = "with_group"
	JoinWithNode        JoinKeyword = "with_node"
	JoinWithUser        JoinKeyword = "with_user"
	JoinWithComputer    JoinKeyword = "with_computer"
	JoinWithComment     JoinKeyword = "with_comment"
	JoinWithLog         JoinKeyword = "with_log"

	// JoinDirection appears only in wire input; the path builder resolves
	// it to with_incoming or with_outgoing before the entry is stored.
	JoinDirection JoinKeyword = "direction"
)

// ValidJoinKeywords defines the keywords allowed in stored path entries.
var ValidJoinKeywords = map[JoinKeyword]bool{
	JoinWithIncoming:    true,
	JoinWithOutgoing:    true,
	JoinWithAncestors:   true,
	JoinWithDescendants: true,
	JoinWithGroup:       true,
	JoinWithNode:        true,
	JoinWithUser:        true,
	JoinWithComputer:    true,
	JoinWithComment:     true,
	JoinWithLog:         true,
}

// IsValid reports whether k may appear in a stored path entry.
func (k JoinKeyword) IsValid() bool {
	return ValidJoinKeywords[k]
}

// EdgeTagDelimiter separates the two vertex tags inside a derived edge
// tag. Plain vertex tags may not contain it.
const EdgeTagDelimiter = "--"

// VertexSpec is one entry of the query path.
//
// The first vertex has no join fields. Every later vertex records the
// join keyword, the tag of its join target, and the tag of the edge
// between them. EntityTypes holds one or more classifier strings; more
// than one means the vertex matches an OR of types.
type VertexSpec struct {
	EntityTypes []string
	Tag         string
	JoinKeyword JoinKeyword
	JoinTarget  string
	OuterJoin   bool
	EdgeTag     string
}

// DeepCopy returns an independent copy of the vertex.
func (v VertexSpec) DeepCopy() VertexSpec {
	out := v
	out.EntityTypes = append([]string(nil), v.EntityTypes...)
	return out
}

// Projection path markers.
const (
	ProjectEntity     = "*"  // whole entity: one typed handle per row
	ProjectAllColumns = "**" // every direct column, expanded at compile time
)

// ValidProjectionFuncs defines the allowed aggregate functions.
var ValidProjectionFuncs = map[string]bool{
	"max":   true,
	"min":   true,
	"count": true,
}

// ValidProjectionCasts defines the allowed cast codes:
// t text, i integer, f float, b boolean, j json, d datetime.
var ValidProjectionCasts = map[string]bool{
	"t": true,
	"i": true,
	"f": true,
	"b": true,
	"j": true,
	"d": true,
}

// ProjectionSpec selects one output column for a tag: a column name, a
// dotted attribute path, or one of the reserved markers, optionally
// wrapped in an aggregate and/or cast.
type ProjectionSpec struct {
	Path string
	Func string
	Cast string
}

// OrderItem orders the result by one column or attribute path of a tag.
// Attribute paths require a cast so the comparison type is explicit.
type OrderItem struct {
	Path  string
	Order string // "asc" or "desc"
	Cast  string
}

// OrderSpec groups the order items contributed by one tag, in the order
// they were declared.
type OrderSpec struct {
	Tag   string
	Items []OrderItem
}

// DeepCopy returns an independent copy of the order spec.
func (o OrderSpec) DeepCopy() OrderSpec {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	return out
}

// Description is the complete declarative state of one query.
type Description struct {
	Path        []VertexSpec
	Filters     map[string]FilterTree
	Projections map[string][]ProjectionSpec
	OrderBy     []OrderSpec
	Limit       *int64
	Offset      *int64
	Distinct    bool
}

// NewDescription returns an empty description with allocated maps.
func NewDescription() *Description {
	return &Description{
		Filters:     map[string]FilterTree{},
		Projections: map[string][]ProjectionSpec{},
	}
}

// DeepCopy returns a fully independent copy of the description.
func (d *Description) DeepCopy() *Description {
	out := NewDescription()
	out.Path = make([]VertexSpec, len(d.Path))
	for i, v := range d.Path {
		out.Path[i] = v.DeepCopy()
	}
	for tag, tree := range d.Filters {
		out.Filters[tag] = tree.DeepCopy()
	}
	for tag, projections := range d.Projections {
		out.Projections[tag] = append([]ProjectionSpec(nil), projections...)
	}
	out.OrderBy = make([]OrderSpec, len(d.OrderBy))
	for i, o := range d.OrderBy {
		out.OrderBy[i] = o.DeepCopy()
	}
	if d.Limit != nil {
		limit := *d.Limit
		out.Limit = &limit
	}
	if d.Offset != nil {
		offset := *d.Offset
		out.Offset = &offset
	}
	out.Distinct = d.Distinct
	return out
}

// VertexTags returns the vertex tags in path order.
func (d *Description) VertexTags() []string {
	tags := make([]string, len(d.Path))
	for i, v := range d.Path {
		tags[i] = v.Tag
	}
	return tags
}

// UsedTags returns all tags in path order: each vertex tag followed by
// its edge tag (for vertices past the first).
func (d *Description) UsedTags(vertices, edges bool) []string {
	var tags []string
	for i, v := range d.Path {
		if vertices {
			tags = append(tags, v.Tag)
		}
		if edges && i > 0 && v.EdgeTag != "" {
			tags = append(tags, v.EdgeTag)
		}
	}
	return tags
}

// HasProjections reports whether any tag has at least one projection.
func (d *Description) HasProjections() bool {
	for _, projections := range d.Projections {
		if len(projections) > 0 {
			return true
		}
	}
	return false
}
