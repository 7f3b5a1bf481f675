// Package entity models the typed entity graph the query builder runs over.
//
// It owns the closed set of entity kinds (node, group, user, computer,
// authinfo, comment, log), the closed set of link kinds, the node type
// registry (a trie over dot-delimited type strings, preserving the stored
// wire format), classifier resolution from handles and type strings, and
// the synthesis of type filters that restrict a vertex to an entity type
// and its subtypes.
//
// Type strings are hierarchical dotted paths with a trailing separator
// ("data.core.int.Int."). Subtype matching is prefix matching on the
// hierarchical prefix (the path minus its final segment), never raw text
// prefix matching, so "data.core.int." matches Int but not a sibling
// type under "data.core.intarray.".
package entity
