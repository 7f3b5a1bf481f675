// Package queryir defines the declarative query description IR.
//
// A Description is the complete, serializable state of one graph query:
// the vertex path with join specifications, per-tag filter trees,
// per-tag projection lists, ordering, limit/offset, and the distinct
// flag. The builder accumulates a Description; the querysql compiler
// consumes it; the wire form (ToWire/ParseDescription) round-trips
// through YAML and JSON and feeds canonical hashing.
//
// FilterExpr and OpSpec are sealed interfaces using the marker method
// pattern. Only types in this package implement them, which keeps type
// switches in the compiler exhaustive and closes the grammar against
// external extension.
//
// The wire format is compatible in both directions: the parser accepts
// the historical nested forms (projection options as {path: {func: …}},
// order items as {path: "desc"}) while the serializer always emits the
// flat forms. Field order inside a filter tree is not significant; the
// compiler orders clauses deterministically by key.
package queryir
