// Package canon provides the canonical value model used for query identity.
//
// A query description is converted to a Value tree, serialized as RFC 8785
// canonical JSON, and hashed with domain separation. Two descriptions that
// serialize to the same canonical bytes are the same query; the builder's
// compilation cache keys on that hash.
//
// Key constraints:
//   - Object keys sort by UTF-16 code units, not UTF-8 bytes
//   - Strings are NFC normalized at the serialization boundary
//   - Floats must be finite; NaN and infinities are rejected
//   - Null is a legal value (absent limit/offset serialize as null)
package canon
