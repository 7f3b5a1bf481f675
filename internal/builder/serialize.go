package builder

import (
	"github.com/provq/provq/internal/canon"
	"github.com/provq/provq/internal/queryir"
	"github.com/provq/provq/internal/querysql"
	"github.com/provq/provq/internal/store"
)

// QueryDict returns the builder's full declarative state as a plain
// wire map: path, filters, project, order_by, limit, offset and
// distinct. The map shares no state with the builder and survives a
// YAML or JSON round trip unchanged.
func (b *Builder) QueryDict() map[string]any {
	return b.desc.DeepCopy().ToWire()
}

// FromQueryDict reconstructs a builder from a wire map produced by
// QueryDict, or hand-written YAML/JSON of the same shape. The map is
// validated completely before a builder is returned.
func FromQueryDict(st *store.Store, wire map[string]any) (*Builder, error) {
	desc, err := queryir.ParseDescription(wire)
	if err != nil {
		return nil, NewInputError("%v", err)
	}
	if err := desc.Validate(); err != nil {
		return nil, NewInputError("%v", err)
	}
	// Hand-written maps may omit filter or projection entries for some
	// tags; seed them so later mutations find the entry in place.
	for _, tag := range desc.UsedTags(true, true) {
		if desc.Filters[tag] == nil {
			desc.Filters[tag] = queryir.FilterTree{}
		}
		if desc.Projections[tag] == nil {
			desc.Projections[tag] = []queryir.ProjectionSpec{}
		}
	}
	b := New(st)
	b.desc = desc
	return b, nil
}

// Compile returns the SQL for the current state. Recompilation is
// gated on the canonical hash of QueryDict, so repeated executions of
// an unchanged builder reuse the compiled form. An injected query is
// returned as-is until a mutation drops it.
func (b *Builder) Compile() (*querysql.Compiled, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.injected != nil {
		return b.injected, nil
	}
	hash, err := canon.QueryHash(b.QueryDict())
	if err != nil {
		return nil, NewInternalError("hashing the query state: %v", err)
	}
	if b.compiled != nil && hash == b.compiledHash {
		return b.compiled, nil
	}
	compiled, err := b.compiler.Compile(b.desc)
	if err != nil {
		return nil, err
	}
	b.compiled = compiled
	b.compiledHash = hash
	return compiled, nil
}

// InjectSQL overrides compilation with a literal statement. The
// injected query carries no projection table, so the typed result
// methods are unavailable; rows come back as column slices. Any
// mutating call drops the injection.
func (b *Builder) InjectSQL(sql string, args ...any) *Builder {
	b.injected = &querysql.Compiled{SQL: sql, Args: args}
	return b
}

// ResetQuery drops the injected statement and the compilation cache,
// forcing the next execution through a full recompilation.
func (b *Builder) ResetQuery() *Builder {
	b.injected = nil
	b.compiled = nil
	b.compiledHash = ""
	return b
}
