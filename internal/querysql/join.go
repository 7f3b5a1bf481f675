package querysql

import (
	"fmt"
	"strings"

	"github.com/provq/provq/internal/entity"
	"github.com/provq/provq/internal/queryir"
)

// TypeMismatchError reports a join whose target tag holds a different
// entity kind than the joining keyword requires. The builder layer maps
// it onto its own error taxonomy, so it carries structured fields
// rather than a pre-baked category.
type TypeMismatchError struct {
	Keyword  queryir.JoinKeyword
	Tag      string
	Expected entity.Kind
	Actual   entity.Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot join using %s: tag %q is a %s vertex, expected %s",
		e.Keyword, e.Tag, e.Actual, e.Expected)
}

// joinClass selects the rendering strategy for a join rule.
type joinClass int

const (
	// joinDirect renders a single JOIN whose ON clause compares foreign
	// keys between the two vertex aliases. No edge alias exists.
	joinDirect joinClass = iota
	// joinLinks renders two JOINs through the links table; the edge tag
	// becomes the alias of the links row.
	joinLinks
	// joinGroupNodes renders two JOINs through the group_nodes table.
	joinGroupNodes
	// joinDescendants renders a recursive CTE walking links forward from
	// the target vertex; the new vertex matches descendant rows.
	joinDescendants
	// joinAncestors is the reverse walk; the new vertex matches ancestor
	// rows.
	joinAncestors
)

// joinRule describes how one (new vertex kind, joining keyword) pair
// renders. target is the kind the joined-to tag must hold. The on
// functions receive already-quoted aliases: t is the existing vertex,
// n the new one, e the edge.
type joinRule struct {
	class    joinClass
	target   entity.Kind
	onDirect func(t, n string) string
	onEdge   func(t, e string) string
	onVertex func(n, e string) string
}

// joinRules is the closed set of supported joins. A lookup miss means
// the keyword does not apply to the appended kind at all; a target
// kind mismatch is reported separately as a TypeMismatchError.
var joinRules = map[entity.Kind]map[queryir.JoinKeyword]joinRule{
	entity.KindNode: {
		queryir.JoinWithIncoming: {
			class:    joinLinks,
			target:   entity.KindNode,
			onEdge:   func(t, e string) string { return fmt.Sprintf("%s.input_id = %s.id", e, t) },
			onVertex: func(n, e string) string { return fmt.Sprintf("%s.output_id = %s.id", e, n) },
		},
		queryir.JoinWithOutgoing: {
			class:    joinLinks,
			target:   entity.KindNode,
			onEdge:   func(t, e string) string { return fmt.Sprintf("%s.output_id = %s.id", e, t) },
			onVertex: func(n, e string) string { return fmt.Sprintf("%s.input_id = %s.id", e, n) },
		},
		queryir.JoinWithGroup: {
			class:    joinGroupNodes,
			target:   entity.KindGroup,
			onEdge:   func(t, e string) string { return fmt.Sprintf("%s.group_id = %s.id", e, t) },
			onVertex: func(n, e string) string { return fmt.Sprintf("%s.node_id = %s.id", e, n) },
		},
		queryir.JoinWithUser: {
			class:    joinDirect,
			target:   entity.KindUser,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.user_id = %s.id", n, t) },
		},
		queryir.JoinWithComputer: {
			class:    joinDirect,
			target:   entity.KindComputer,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.computer_id = %s.id", n, t) },
		},
		queryir.JoinWithComment: {
			class:    joinDirect,
			target:   entity.KindComment,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.node_id = %s.id", t, n) },
		},
		queryir.JoinWithLog: {
			class:    joinDirect,
			target:   entity.KindLog,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.node_id = %s.id", t, n) },
		},
		queryir.JoinWithAncestors: {
			class:  joinDescendants,
			target: entity.KindNode,
		},
		queryir.JoinWithDescendants: {
			class:  joinAncestors,
			target: entity.KindNode,
		},
	},
	entity.KindGroup: {
		queryir.JoinWithNode: {
			class:    joinGroupNodes,
			target:   entity.KindNode,
			onEdge:   func(t, e string) string { return fmt.Sprintf("%s.node_id = %s.id", e, t) },
			onVertex: func(n, e string) string { return fmt.Sprintf("%s.group_id = %s.id", e, n) },
		},
		queryir.JoinWithUser: {
			class:    joinDirect,
			target:   entity.KindUser,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.user_id = %s.id", n, t) },
		},
	},
	entity.KindUser: {
		queryir.JoinWithNode: {
			class:    joinDirect,
			target:   entity.KindNode,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.id = %s.user_id", n, t) },
		},
		queryir.JoinWithGroup: {
			class:    joinDirect,
			target:   entity.KindGroup,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.id = %s.user_id", n, t) },
		},
		queryir.JoinWithComment: {
			class:    joinDirect,
			target:   entity.KindComment,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.id = %s.user_id", n, t) },
		},
	},
	entity.KindComputer: {
		queryir.JoinWithNode: {
			class:    joinDirect,
			target:   entity.KindNode,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.id = %s.computer_id", n, t) },
		},
	},
	entity.KindComment: {
		queryir.JoinWithNode: {
			class:    joinDirect,
			target:   entity.KindNode,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.node_id = %s.id", n, t) },
		},
		queryir.JoinWithUser: {
			class:    joinDirect,
			target:   entity.KindUser,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.user_id = %s.id", n, t) },
		},
	},
	entity.KindLog: {
		queryir.JoinWithNode: {
			class:    joinDirect,
			target:   entity.KindNode,
			onDirect: func(t, n string) string { return fmt.Sprintf("%s.node_id = %s.id", n, t) },
		},
	},
}

// lookupJoinRule resolves the rule for appending a vertex of kind via
// keyword. Authinfo vertices have no rules in either direction; they
// can only start a path.
func lookupJoinRule(kind entity.Kind, keyword queryir.JoinKeyword) (joinRule, error) {
	rules, ok := joinRules[kind]
	if !ok {
		return joinRule{}, fmt.Errorf("%s vertices cannot be joined to an earlier entity", kind)
	}
	rule, ok := rules[keyword]
	if !ok {
		return joinRule{}, fmt.Errorf("%s is not a valid joining keyword for a %s vertex", keyword, kind)
	}
	return rule, nil
}

// closureSpec carries everything needed to render one transitive
// closure CTE. The seed filter is the target tag's filter tree
// compiled against the CTE-local seed alias, so the walk starts only
// from rows the outer query could produce for that tag.
type closureSpec struct {
	name       string // quoted CTE name, from the edge tag
	reverse    bool   // true walks ancestors (joinAncestors)
	withPath   bool
	seedSQL    string
	seedParams []any
}

// Aliases local to a CTE body. They never collide with outer tags
// because the body is a self-contained scope.
const (
	closureSeedAlias = `"seed"`
	closureWalkAlias = `"walk"`
)

// renderClosureCTE renders one WITH RECURSIVE member for a descendant
// or ancestor walk over create and input_calc links. The returned
// params interleave the seed filter params with the link-kind lists in
// SQL text order.
func renderClosureCTE(spec closureSpec) (string, []any) {
	kinds := entity.ClosureLinkKinds
	kindList := placeholderList(len(kinds))

	cols := "ancestor_id, descendant_id, depth"
	if spec.withPath {
		cols += ", path"
	}

	var base, step string
	if spec.reverse {
		base = fmt.Sprintf("SELECT %[1]s.input_id, %[1]s.output_id, 0", closureWalkAlias)
		if spec.withPath {
			base += fmt.Sprintf(", json_array(%[1]s.output_id, %[1]s.input_id)", closureWalkAlias)
		}
		base += fmt.Sprintf(" FROM %s AS %s JOIN %s AS %s ON %s.output_id = %s.id WHERE %s AND %s.type IN (%s)",
			Table(entity.KindNode), closureSeedAlias,
			LinkTable, closureWalkAlias, closureWalkAlias, closureSeedAlias,
			spec.seedSQL, closureWalkAlias, kindList)

		step = fmt.Sprintf("SELECT %s.input_id, %s.descendant_id, %s.depth + 1", closureWalkAlias, spec.name, spec.name)
		if spec.withPath {
			step += fmt.Sprintf(", json_insert(%s.path, '$[#]', %s.input_id)", spec.name, closureWalkAlias)
		}
		step += fmt.Sprintf(" FROM %s JOIN %s AS %s ON %s.output_id = %s.ancestor_id WHERE %s.type IN (%s)",
			spec.name, LinkTable, closureWalkAlias, closureWalkAlias, spec.name,
			closureWalkAlias, kindList)
	} else {
		base = fmt.Sprintf("SELECT %[1]s.input_id, %[1]s.output_id, 0", closureWalkAlias)
		if spec.withPath {
			base += fmt.Sprintf(", json_array(%[1]s.input_id, %[1]s.output_id)", closureWalkAlias)
		}
		base += fmt.Sprintf(" FROM %s AS %s JOIN %s AS %s ON %s.input_id = %s.id WHERE %s AND %s.type IN (%s)",
			Table(entity.KindNode), closureSeedAlias,
			LinkTable, closureWalkAlias, closureWalkAlias, closureSeedAlias,
			spec.seedSQL, closureWalkAlias, kindList)

		step = fmt.Sprintf("SELECT %s.ancestor_id, %s.output_id, %s.depth + 1", spec.name, closureWalkAlias, spec.name)
		if spec.withPath {
			step += fmt.Sprintf(", json_insert(%s.path, '$[#]', %s.output_id)", spec.name, closureWalkAlias)
		}
		step += fmt.Sprintf(" FROM %s JOIN %s AS %s ON %s.input_id = %s.descendant_id WHERE %s.type IN (%s)",
			spec.name, LinkTable, closureWalkAlias, closureWalkAlias, spec.name,
			closureWalkAlias, kindList)
	}

	sql := fmt.Sprintf("%s (%s) AS (%s UNION ALL %s)", spec.name, cols, base, step)

	params := make([]any, 0, len(spec.seedParams)+2*len(kinds))
	params = append(params, spec.seedParams...)
	for _, k := range kinds {
		params = append(params, string(k))
	}
	for _, k := range kinds {
		params = append(params, string(k))
	}
	return sql, params
}

func placeholderList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
