// Package querydef loads named query definitions from YAML, JSON or
// CUE files. Every definition is unified with the embedded CUE schema
// before the query description inside it is parsed, so malformed files
// fail with file and path context instead of surfacing later as
// builder errors.
package querydef

import (
	"fmt"

	"github.com/provq/provq/internal/builder"
	"github.com/provq/provq/internal/canon"
	"github.com/provq/provq/internal/store"
)

// Definition is one named, stored query.
type Definition struct {
	Name        string
	Description string

	// Query is the wire form of the query description, as accepted by
	// builder.FromQueryDict.
	Query map[string]any
}

// Hash returns the content-addressed identity of the definition:
// name, description and query under the definition domain.
func (d *Definition) Hash() (string, error) {
	return canon.DefinitionHash(map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"query":       d.Query,
	})
}

// Build constructs a builder for the definition's query. A nil store
// yields a compile-only builder.
func (d *Definition) Build(st *store.Store) (*builder.Builder, error) {
	b, err := builder.FromQueryDict(st, d.Query)
	if err != nil {
		return nil, fmt.Errorf("definition %q: %w", d.Name, err)
	}
	return b, nil
}
