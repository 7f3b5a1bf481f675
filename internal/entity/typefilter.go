package entity

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// TypeFilters synthesizes the wire-form filters that restrict one vertex
// to its resolved classifiers. The caller merges the result into the
// vertex's filter tree BEFORE any user-supplied filters, so user filters
// can narrow but never get silently overridden.
//
// Node vertices filter on node_type and, when a process type is present,
// process_type. Group vertices filter on type_string. The remaining
// kinds have no type column and produce no filter.
func TypeFilters(classifiers []Classifier, subclass bool) map[string]any {
	if len(classifiers) == 0 {
		return map[string]any{}
	}

	filters := map[string]any{}
	switch classifiers[0].Kind {
	case KindNode:
		filters["node_type"] = orOfFilters(classifiers, func(c Classifier) map[string]any {
			return NodeTypeFilter(c.TypeString, subclass)
		})
		var process []map[string]any
		for _, c := range classifiers {
			if c.ProcessType != "" {
				process = append(process, ProcessTypeFilter(c.ProcessType, subclass))
			}
		}
		if len(process) == 1 {
			filters["process_type"] = process[0]
		} else if len(process) > 1 {
			anyProcess := make([]any, len(process))
			for i, p := range process {
				anyProcess[i] = p
			}
			filters["process_type"] = map[string]any{"or": anyProcess}
		}
	case KindGroup:
		filters["type_string"] = orOfFilters(classifiers, func(c Classifier) map[string]any {
			return GroupTypeFilter(c.TypeString, subclass)
		})
	}
	return filters
}

func orOfFilters(classifiers []Classifier, one func(Classifier) map[string]any) any {
	if len(classifiers) == 1 {
		return one(classifiers[0])
	}
	terms := make([]any, len(classifiers))
	for i, c := range classifiers {
		terms[i] = one(c)
	}
	return map[string]any{"or": terms}
}

// NodeTypeFilter returns the operator spec restricting node_type to
// typeString (subclass=false) or to its whole subtree (subclass=true).
func NodeTypeFilter(typeString string, subclass bool) map[string]any {
	if !subclass {
		return map[string]any{"==": typeString}
	}
	return map[string]any{"like": EscapeLike(QueryTypePrefix(typeString)) + "%"}
}

// ProcessTypeFilter returns the operator spec restricting process_type.
//
// Three cases: colon-qualified entry-point identifiers match themselves
// or their nested namespace; engine-internal process types degrade to a
// wildcard (the node-type filter already disambiguates); anything else
// gets the same equality-or-prefix matching plus a compatibility
// warning, since subtype discovery for it is best-effort.
func ProcessTypeFilter(processType string, subclass bool) map[string]any {
	if !subclass {
		return map[string]any{"==": processType}
	}

	switch {
	case strings.Contains(processType, ":"):
		return equalityOrPrefix(processType)
	case strings.HasPrefix(processType, EngineProcessPrefix):
		return map[string]any{"like": "%"}
	default:
		log.Warn().
			Str("process_type", processType).
			Msg("process type is not an entry-point identifier; subtype matching is based on its dotted path only")
		return equalityOrPrefix(processType)
	}
}

func equalityOrPrefix(processType string) map[string]any {
	return map[string]any{"or": []any{
		map[string]any{"==": processType},
		map[string]any{"like": EscapeLike(ProcessQueryString(processType)) + "%"},
	}}
}

// GroupTypeFilter returns the operator spec restricting type_string for
// a group classifier (carrying the "group." prefix). The base group
// type's subclass prefix is empty, so it matches every group.
func GroupTypeFilter(classifierString string, subclass bool) map[string]any {
	value := strings.TrimPrefix(classifierString, GroupTypePrefix)
	if !subclass {
		return map[string]any{"==": value}
	}
	if value == BaseGroupType {
		value = ""
	}
	return map[string]any{"like": EscapeLike(value) + "%"}
}
