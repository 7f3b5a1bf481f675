// Package builder implements the declarative graph query builder.
//
// A Builder accumulates a query description: a path of entity vertices
// connected by typed joins, plus per-tag filters, projections and
// ordering. Nothing touches the database until an execution method
// runs; until then every mutator only edits the description.
//
// Query lifecycle:
//  1. Append() grows the path one vertex at a time, synthesizing the
//     type filters for each vertex and resolving how it joins to an
//     earlier tag.
//  2. AddFilter/AddProjection/OrderBy/Limit/Offset/Distinct refine the
//     description per tag.
//  3. Compile() turns the description into one SQL statement. A
//     content hash of the serialized description gates recompilation,
//     so repeated executions of an unchanged builder reuse the
//     compiled statement.
//  4. All/Dict/First/One/Count execute against the store and decode
//     rows back into typed entities and scalars.
//
// The builder is a synchronous accumulate-compile-execute pipeline and
// performs no internal locking. Sharing one instance across goroutines
// requires external synchronization, or a copy made by round-tripping
// QueryDict through FromQueryDict. Execution holds no transaction of
// its own and never retries; backend errors propagate wrapped.
package builder
