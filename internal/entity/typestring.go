package entity

import (
	"fmt"
	"strings"
)

const (
	// GroupTypePrefix marks a classifier string as group-like.
	// Stored group type strings do NOT carry the prefix; only classifiers do.
	GroupTypePrefix = "group."

	// BaseNodeType is the root of the node type hierarchy. Its subclass
	// filter matches every node.
	BaseNodeType = "node.Node."

	// BaseGroupType is the stored type string of ordinary groups. Its
	// subclass filter matches every group.
	BaseGroupType = "core"

	// EngineProcessPrefix marks process types of engine-internal steps.
	// The node-type filter already pins those down, so their process-type
	// subclass filter degrades to a wildcard.
	EngineProcessPrefix = "provq.engine"
)

// ValidateNodeTypeString checks that s is a well-formed node type string:
// a non-empty dot-terminated path of non-empty segments.
func ValidateNodeTypeString(s string) error {
	if s == "" {
		return fmt.Errorf("node type string must not be empty")
	}
	if !strings.HasSuffix(s, ".") {
		return fmt.Errorf("node type string %q must end with %q", s, ".")
	}
	for _, segment := range strings.Split(strings.TrimSuffix(s, "."), ".") {
		if segment == "" {
			return fmt.Errorf("node type string %q contains an empty path segment", s)
		}
	}
	return nil
}

// QueryTypePrefix derives the hierarchical prefix used for subclass
// matching: the type path minus its final segment, dot-terminated.
// The base node type (and the empty string) map to the empty prefix,
// which matches every node.
func QueryTypePrefix(typeString string) string {
	if typeString == "" || typeString == BaseNodeType {
		return ""
	}
	segments := strings.Split(strings.TrimSuffix(typeString, "."), ".")
	if len(segments) <= 1 {
		return ""
	}
	return strings.Join(segments[:len(segments)-1], ".") + "."
}

// ProcessQueryString derives the prefix used for subclass matching on
// process types. Entry-point identifiers (colon-qualified) match their
// own nested namespace; plain dotted class paths drop the final segment.
func ProcessQueryString(processType string) string {
	if strings.Contains(processType, ":") {
		return processType + "."
	}
	if i := strings.LastIndex(processType, "."); i >= 0 {
		return processType[:i+1]
	}
	return processType + "."
}

// EscapeLike escapes s for use in a LIKE pattern compiled with
// ESCAPE '\': backslash first, then the % and _ wildcards.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// BaseTagSegment returns the trailing hierarchy segment of a classifier
// string, the seed for auto-generated tags. Empty strings seed "node".
func BaseTagSegment(typeString string) string {
	trimmed := strings.TrimSuffix(typeString, ".")
	if trimmed == "" {
		return "node"
	}
	segments := strings.Split(trimmed, ".")
	last := segments[len(segments)-1]
	if last == "" {
		return "node"
	}
	return last
}
