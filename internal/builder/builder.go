package builder

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/provq/provq/internal/entity"
	"github.com/provq/provq/internal/orm"
	"github.com/provq/provq/internal/queryir"
	"github.com/provq/provq/internal/querysql"
	"github.com/provq/provq/internal/store"
)

// Builder accumulates a declarative query over the entity graph and
// compiles it to SQL on demand. The zero value is not usable; construct
// with New or FromQueryDict.
type Builder struct {
	store    *store.Store
	compiler *querysql.Compiler
	desc     *queryir.Description
	log      zerolog.Logger

	// err records the first failure of a chaining mutator.
	err error

	// compiled caches the last compilation, keyed by the description
	// hash. injected, when set, overrides compilation entirely.
	compiled     *querysql.Compiled
	compiledHash string
	injected     *querysql.Compiled
}

// New returns an empty builder executing against st. A nil store is
// allowed for compile-only use; execution methods then fail.
func New(st *store.Store) *Builder {
	return &Builder{
		store:    st,
		compiler: querysql.NewCompiler(),
		desc:     queryir.NewDescription(),
		log:      log.With().Str("component", "builder").Logger(),
	}
}

// Err returns the first error recorded by a chaining mutator, or nil.
func (b *Builder) Err() error {
	return b.err
}

// Debug toggles this builder's logging of compiled SQL before each
// execution. The global zerolog level still gates output.
func (b *Builder) Debug(on bool) *Builder {
	lvl := zerolog.InfoLevel
	if on {
		lvl = zerolog.DebugLevel
	}
	b.log = b.log.Level(lvl)
	return b
}

// AppendSpec describes one vertex to add to the query path.
//
// Exactly one selector family must be set: Handle/Handles (typed entity
// selectors, including the orm row types and entity.Classifier) or
// TypeString/TypeStrings (stored type strings). A list selector matches
// an OR of the listed types; all list elements must resolve to the same
// entity kind.
//
// At most one join directive may be set. The With* fields name the tag
// of an earlier vertex; Direction counts vertices back from the end of
// the path, positive joining like WithIncoming and negative like
// WithOutgoing. Without a directive the vertex joins WithIncoming to
// the previous one.
type AppendSpec struct {
	Handle      entity.Handle
	Handles     []entity.Handle
	TypeString  string
	TypeStrings []string

	// Tag names the vertex. Empty means a unique tag is derived from
	// the selector's trailing type segment.
	Tag string

	// Filters and Project seed the vertex's filter tree and projection
	// list, in the same wire form AddFilter and AddProjection accept.
	Filters map[string]any
	Project any

	// ExactType disables subclass matching for the synthesized type
	// filter, restricting the vertex to exactly the selected types.
	ExactType bool

	// OuterJoin makes the join to the target a LEFT OUTER JOIN.
	OuterJoin bool

	// EdgeTag names the edge to the join target; default is
	// "<target>--<tag>". EdgeFilters and EdgeProject seed the edge's
	// filter tree and projection list.
	EdgeTag     string
	EdgeFilters map[string]any
	EdgeProject any

	WithIncoming    string
	WithOutgoing    string
	WithAncestors   string
	WithDescendants string
	WithGroup       string
	WithNode        string
	WithUser        string
	WithComputer    string
	WithComment     string
	WithLog         string
	Direction       int
}

// Append adds one vertex to the path and returns the builder for
// chaining. The spec is validated completely before any state changes,
// so a failed append leaves the builder as it was; the error is
// recorded and surfaced by Err(), and later appends are skipped once
// an error is recorded.
func (b *Builder) Append(spec AppendSpec) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.append(spec); err != nil {
		b.err = err
	}
	return b
}

func (b *Builder) append(spec AppendSpec) error {
	classifiers, _, err := resolveSelector(spec)
	if err != nil {
		return NewInputError("%v", err)
	}

	tag, err := b.vertexTag(spec.Tag, classifiers)
	if err != nil {
		return err
	}

	// Stage the vertex filter tree: synthesized type filters first,
	// user filters merged on top so they win per key.
	tree := queryir.FilterTree{}
	if typeFilters := entity.TypeFilters(classifiers, !spec.ExactType); len(typeFilters) > 0 {
		parsed, err := queryir.ParseFilterTree(typeFilters)
		if err != nil {
			return NewInternalError("synthesized type filter: %v", err).withTag(tag)
		}
		tree.Merge(parsed)
	}
	if spec.Filters != nil {
		parsed, err := queryir.ParseFilterTree(processFilters(spec.Filters))
		if err != nil {
			return NewInputError("invalid filters: %v", err).withTag(tag)
		}
		tree.Merge(parsed)
	}

	projections := []queryir.ProjectionSpec{}
	if spec.Project != nil {
		projections, err = queryir.ParseProjections(spec.Project)
		if err != nil {
			return NewInputError("invalid projections: %v", err).withTag(tag)
		}
	}

	keyword, target, err := b.resolveJoin(spec)
	if err != nil {
		return err
	}

	var edgeTag string
	edgeTree := queryir.FilterTree{}
	edgeProjections := []queryir.ProjectionSpec{}
	if len(b.desc.Path) > 0 {
		edgeTag = spec.EdgeTag
		if edgeTag == "" {
			edgeTag = target + queryir.EdgeTagDelimiter + tag
		} else if edgeTag == tag || b.hasTag(edgeTag) {
			// The vertex tag is not registered yet, so the staged tag
			// needs its own check.
			return NewInputError("the edge tag %q is already in use", edgeTag)
		}
		if spec.EdgeFilters != nil {
			parsed, err := queryir.ParseFilterTree(processFilters(spec.EdgeFilters))
			if err != nil {
				return NewInputError("invalid edge filters: %v", err).withTag(edgeTag)
			}
			edgeTree.Merge(parsed)
		}
		if spec.EdgeProject != nil {
			edgeProjections, err = queryir.ParseProjections(spec.EdgeProject)
			if err != nil {
				return NewInputError("invalid edge projections: %v", err).withTag(edgeTag)
			}
		}
	}

	// Validation complete; commit.
	entityTypes := make([]string, len(classifiers))
	for i, c := range classifiers {
		entityTypes[i] = c.TypeString
	}
	vertex := queryir.VertexSpec{EntityTypes: entityTypes, Tag: tag}
	if len(b.desc.Path) > 0 {
		vertex.JoinKeyword = keyword
		vertex.JoinTarget = target
		vertex.EdgeTag = edgeTag
		vertex.OuterJoin = spec.OuterJoin
	}
	b.desc.Path = append(b.desc.Path, vertex)
	b.desc.Filters[tag] = tree
	b.desc.Projections[tag] = projections
	if edgeTag != "" {
		b.desc.Filters[edgeTag] = edgeTree
		b.desc.Projections[edgeTag] = edgeProjections
	}
	b.touch()
	return nil
}

// resolveSelector combines the singular and list selector fields and
// resolves them to classifiers.
func resolveSelector(spec AppendSpec) ([]entity.Classifier, entity.Kind, error) {
	var handles []entity.Handle
	if spec.Handle != nil {
		handles = append(handles, spec.Handle)
	}
	handles = append(handles, spec.Handles...)

	var typeStrings []string
	if spec.TypeString != "" {
		typeStrings = append(typeStrings, spec.TypeString)
	}
	typeStrings = append(typeStrings, spec.TypeStrings...)

	return entity.Resolve(handles, typeStrings)
}

// vertexTag validates an explicit tag or derives a unique one.
func (b *Builder) vertexTag(tag string, classifiers []entity.Classifier) (string, error) {
	if tag == "" {
		return b.uniqueTag(classifiers)
	}
	if strings.Contains(tag, queryir.EdgeTagDelimiter) {
		return "", NewInputError("tag %q cannot contain %q, it is the edge tag delimiter", tag, queryir.EdgeTagDelimiter)
	}
	if b.hasTag(tag) {
		return "", NewInputError("the tag %q is already in use", tag)
	}
	return tag, nil
}

// uniqueTag derives a free tag from the selector's trailing type
// segments. The numeric suffix is capped; exhausting it takes 99
// colliding explicit tags, but the cap keeps the loop finite.
func (b *Builder) uniqueTag(classifiers []entity.Classifier) (string, error) {
	base := entity.AutoTagBase(classifiers)
	for i := 1; i < 100; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !b.hasTag(candidate) {
			return candidate, nil
		}
	}
	return "", NewInputError("cannot find a unique tag for %q after 99 tries", base)
}

// joinDirective pairs a keyword with the tag it names. Direction
// directives carry no tag; the offset lives in AppendSpec.Direction.
type joinDirective struct {
	keyword queryir.JoinKeyword
	target  string
}

func collectDirectives(spec AppendSpec) []joinDirective {
	fields := []joinDirective{
		{queryir.JoinWithIncoming, spec.WithIncoming},
		{queryir.JoinWithOutgoing, spec.WithOutgoing},
		{queryir.JoinWithAncestors, spec.WithAncestors},
		{queryir.JoinWithDescendants, spec.WithDescendants},
		{queryir.JoinWithGroup, spec.WithGroup},
		{queryir.JoinWithNode, spec.WithNode},
		{queryir.JoinWithUser, spec.WithUser},
		{queryir.JoinWithComputer, spec.WithComputer},
		{queryir.JoinWithComment, spec.WithComment},
		{queryir.JoinWithLog, spec.WithLog},
	}
	var out []joinDirective
	for _, f := range fields {
		if f.target != "" {
			out = append(out, f)
		}
	}
	if spec.Direction != 0 {
		out = append(out, joinDirective{keyword: queryir.JoinDirection})
	}
	return out
}

// resolveJoin turns the spec's join directive into a stored keyword and
// target tag. The first vertex resolves to an empty keyword.
func (b *Builder) resolveJoin(spec AppendSpec) (queryir.JoinKeyword, string, error) {
	directives := collectDirectives(spec)
	if len(directives) > 1 {
		return "", "", NewInputError("already specified the join directive %s, cannot also take %s",
			directives[0].keyword, directives[1].keyword)
	}
	if len(directives) == 0 {
		if len(b.desc.Path) == 0 {
			return "", "", nil
		}
		return queryir.JoinWithIncoming, b.desc.Path[len(b.desc.Path)-1].Tag, nil
	}

	d := directives[0]
	if d.keyword == queryir.JoinDirection {
		keyword := queryir.JoinWithIncoming
		if spec.Direction < 0 {
			keyword = queryir.JoinWithOutgoing
		}
		offset := spec.Direction
		if offset < 0 {
			offset = -offset
		}
		idx := len(b.desc.Path) - offset
		if idx < 0 {
			return "", "", NewInputError("direction %d points at a non-existent vertex, the path has %d entries",
				spec.Direction, len(b.desc.Path))
		}
		return keyword, b.desc.Path[idx].Tag, nil
	}

	if !b.hasTag(d.target) {
		return "", "", NewInputError("tag %q is not among the known tags %v", d.target, b.knownTags())
	}
	return d.keyword, d.target, nil
}

// AddFilter merges filters into the tag's filter tree at the top
// level, so re-filtering a field replaces its previous spec and
// nothing else. tagSpec is a tag, or an entity handle or type string
// matching exactly one appended vertex.
func (b *Builder) AddFilter(tagSpec any, filters map[string]any) error {
	tag, err := b.resolveSpecifier(tagSpec)
	if err != nil {
		return err
	}
	parsed, err := queryir.ParseFilterTree(processFilters(filters))
	if err != nil {
		return NewInputError("invalid filters: %v", err).withTag(tag)
	}
	tree := b.desc.Filters[tag]
	if tree == nil {
		tree = queryir.FilterTree{}
		b.desc.Filters[tag] = tree
	}
	tree.Merge(parsed)
	b.touch()
	return nil
}

// processFilters prepares a wire filter map: top-level values that are
// stored entity rows collapse to an id predicate on the corresponding
// foreign key column, and timestamps anywhere in the tree become their
// canonical stored text form.
func processFilters(filters map[string]any) map[string]any {
	out := make(map[string]any, len(filters))
	for key, value := range filters {
		if row, ok := value.(orm.Row); ok {
			out[key+"_id"] = row.RowID()
			continue
		}
		out[key] = normalizeFilterValue(value)
	}
	return out
}

func normalizeFilterValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(orm.TimeLayout)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeFilterValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeFilterValue(elem)
		}
		return out
	default:
		return v
	}
}

// AddProjection replaces the tag's projection list. projections is a
// single item or a list; each item is a column name, a dotted JSON
// path, "*" for the whole entity, "**" for every column, or a mapping
// with cast/func options.
func (b *Builder) AddProjection(tagSpec any, projections any) error {
	tag, err := b.resolveSpecifier(tagSpec)
	if err != nil {
		return err
	}
	specs, err := queryir.ParseProjections(projections)
	if err != nil {
		return NewInputError("invalid projections: %v", err).withTag(tag)
	}
	b.desc.Projections[tag] = specs
	b.touch()
	return nil
}

// OrderBy replaces the ordering. Each spec maps a tag (or selector) to
// order items: a column or JSON path string, or {path: "desc"}, or
// {path: {order, cast}}. Within one spec map tags apply in sorted
// order; pass separate specs to interleave tags explicitly.
func (b *Builder) OrderBy(specs ...map[string]any) error {
	var staged []queryir.OrderSpec
	for _, spec := range specs {
		for _, tagSpec := range sortedSpecKeys(spec) {
			tag, err := b.resolveSpecifier(tagSpec)
			if err != nil {
				return err
			}
			items, err := queryir.ParseOrderItems(spec[tagSpec])
			if err != nil {
				return NewInputError("invalid ordering: %v", err).withTag(tag)
			}
			staged = append(staged, queryir.OrderSpec{Tag: tag, Items: items})
		}
	}
	b.desc.OrderBy = staged
	b.touch()
	return nil
}

func sortedSpecKeys(spec map[string]any) []string {
	keys := make([]string, 0, len(spec))
	for key := range spec {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Limit caps the number of result rows. Limit(-1) clears a previous
// limit; other negative values are input errors.
func (b *Builder) Limit(n int64) error {
	switch {
	case n == -1:
		b.desc.Limit = nil
	case n < 0:
		return NewInputError("limit must be non-negative, or -1 to clear, got %d", n)
	default:
		b.desc.Limit = &n
	}
	b.touch()
	return nil
}

// Offset skips rows before counting the limit. Offset(-1) clears a
// previous offset; other negative values are input errors.
func (b *Builder) Offset(n int64) error {
	switch {
	case n == -1:
		b.desc.Offset = nil
	case n < 0:
		return NewInputError("offset must be non-negative, or -1 to clear, got %d", n)
	default:
		b.desc.Offset = &n
	}
	b.touch()
	return nil
}

// Distinct asks for distinct rows.
func (b *Builder) Distinct() *Builder {
	b.desc.Distinct = true
	b.touch()
	return b
}

// Inputs appends a node vertex matching the input nodes of the
// current last vertex.
func (b *Builder) Inputs() *Builder {
	return b.joinToLast("Inputs", func(spec *AppendSpec, tag string) {
		spec.WithOutgoing = tag
	})
}

// Outputs appends a node vertex matching the output nodes of the
// current last vertex.
func (b *Builder) Outputs() *Builder {
	return b.joinToLast("Outputs", func(spec *AppendSpec, tag string) {
		spec.WithIncoming = tag
	})
}

// Children appends a node vertex matching the transitive descendants
// of the current last vertex.
func (b *Builder) Children() *Builder {
	return b.joinToLast("Children", func(spec *AppendSpec, tag string) {
		spec.WithAncestors = tag
	})
}

// Parents appends a node vertex matching the transitive ancestors of
// the current last vertex.
func (b *Builder) Parents() *Builder {
	return b.joinToLast("Parents", func(spec *AppendSpec, tag string) {
		spec.WithDescendants = tag
	})
}

func (b *Builder) joinToLast(name string, set func(spec *AppendSpec, tag string)) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.desc.Path) == 0 {
		b.err = NewInputError("%s requires at least one vertex in the path", name)
		return b
	}
	spec := AppendSpec{Handle: orm.Node{}}
	set(&spec, b.desc.Path[len(b.desc.Path)-1].Tag)
	return b.Append(spec)
}

// resolveSpecifier resolves a tag specifier: a known tag, or an entity
// handle or type string matching exactly one appended vertex.
func (b *Builder) resolveSpecifier(spec any) (string, error) {
	switch s := spec.(type) {
	case string:
		if b.hasTag(s) {
			return s, nil
		}
		c, err := entity.ResolveTypeString(s)
		if err != nil {
			return "", NewInputError("tag %q is not among the known tags %v", s, b.knownTags())
		}
		return b.tagForClassifier(c)
	case entity.Handle:
		c, err := entity.ResolveHandle(s)
		if err != nil {
			return "", NewInputError("%v", err)
		}
		return b.tagForClassifier(c)
	default:
		return "", NewInputError("cannot resolve %T to a tag, expected a tag string or an entity handle", spec)
	}
}

// tagForClassifier finds the single vertex whose type selector equals
// the classifier.
func (b *Builder) tagForClassifier(c entity.Classifier) (string, error) {
	var matches []string
	for _, vertex := range b.desc.Path {
		if len(vertex.EntityTypes) == 1 && vertex.EntityTypes[0] == c.TypeString {
			matches = append(matches, vertex.Tag)
		}
	}
	switch len(matches) {
	case 0:
		return "", NewInputError("no vertex matches the selector %q, the known tags are %v", c.TypeString, b.knownTags())
	case 1:
		return matches[0], nil
	default:
		return "", NewInputError("the selector %q is ambiguous, it matches the tags %v", c.TypeString, matches)
	}
}

func (b *Builder) knownTags() []string {
	return b.desc.UsedTags(true, true)
}

func (b *Builder) hasTag(tag string) bool {
	return slices.Contains(b.knownTags(), tag)
}

// touch marks the description changed: a pending SQL injection is
// dropped and the next compilation goes through the hash gate again.
func (b *Builder) touch() {
	b.injected = nil
}
