package entity

import (
	"fmt"
	"strings"
)

// Classifier is the normalized descriptor of an entity's position in the
// type hierarchy, derived from a handle or a stored type string. Node
// classifiers resolved from process handles additionally carry the
// process type.
type Classifier struct {
	Kind        Kind
	TypeString  string
	ProcessType string
}

// EntityClassifier makes Classifier its own Handle, so resolved
// classifiers and constructed selectors pass anywhere a handle does.
func (c Classifier) EntityClassifier() Classifier {
	return c
}

// Handle is implemented by anything that can stand for an entity type in
// an append call: the orm row types and Classifier itself.
type Handle interface {
	EntityClassifier() Classifier
}

// NodeType builds a node selector for a stored node type string.
func NodeType(typeString string) Classifier {
	return Classifier{Kind: KindNode, TypeString: typeString}
}

// GroupType builds a group selector for a stored group type string
// (without the classifier prefix).
func GroupType(typeString string) Classifier {
	return Classifier{Kind: KindGroup, TypeString: GroupTypePrefix + typeString}
}

// ProcessType builds a node selector restricted to a process type.
// typeString names the storage node class; processType the executable
// unit, usually a colon-qualified entry-point identifier.
func ProcessType(typeString, processType string) Classifier {
	return Classifier{Kind: KindNode, TypeString: typeString, ProcessType: processType}
}

// ResolveHandle validates and normalizes a handle's classifier.
func ResolveHandle(h Handle) (Classifier, error) {
	if h == nil {
		return Classifier{}, fmt.Errorf("nil entity handle")
	}
	c := h.EntityClassifier()
	if !c.Kind.IsValid() {
		return Classifier{}, fmt.Errorf("unrecognized entity kind %q in handle %T", c.Kind, h)
	}
	switch c.Kind {
	case KindNode:
		if err := ValidateNodeTypeString(c.TypeString); err != nil {
			return Classifier{}, err
		}
	case KindGroup:
		if !strings.HasPrefix(c.TypeString, GroupTypePrefix) {
			return Classifier{}, fmt.Errorf("group classifier %q lacks the %q prefix", c.TypeString, GroupTypePrefix)
		}
	default:
		if c.TypeString == "" {
			c.TypeString = string(c.Kind)
		}
	}
	return c, nil
}

// ResolveTypeString resolves a wire-form type string to a classifier.
//
// The string is lowercased for dispatch. Any string with the group
// prefix resolves to exactly "group.core", whatever its suffix; stored
// queries depend on this historical behavior. Fixed entity names
// resolve to their kinds. Everything else must be a well-formed node
// type string and keeps its original case.
func ResolveTypeString(s string) (Classifier, error) {
	lowered := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lowered, GroupTypePrefix):
		return Classifier{Kind: KindGroup, TypeString: GroupTypePrefix + BaseGroupType}, nil
	case lowered == "computer":
		return Classifier{Kind: KindComputer, TypeString: "computer"}, nil
	case lowered == "user":
		return Classifier{Kind: KindUser, TypeString: "user"}, nil
	case lowered == "authinfo":
		return Classifier{Kind: KindAuthInfo, TypeString: "authinfo"}, nil
	case lowered == "comment":
		return Classifier{Kind: KindComment, TypeString: "comment"}, nil
	case lowered == "log":
		return Classifier{Kind: KindLog, TypeString: "log"}, nil
	default:
		if err := ValidateNodeTypeString(s); err != nil {
			return Classifier{}, err
		}
		return Classifier{Kind: KindNode, TypeString: s}, nil
	}
}

// KindForClassifier derives the entity kind from an already-resolved
// classifier string, the form stored in serialized query paths. No
// lowercasing and no group collapsing happen here: resolution did that
// when the string was produced.
func KindForClassifier(s string) Kind {
	switch {
	case strings.HasPrefix(s, GroupTypePrefix):
		return KindGroup
	case s == "user", s == "computer", s == "authinfo", s == "comment", s == "log":
		return Kind(s)
	default:
		return KindNode
	}
}

// Resolve resolves an append selector. Exactly one of handles or
// typeStrings must be non-empty. Every element must resolve to the same
// entity kind; the resulting classifier list drives an OR of type
// filters on one vertex.
func Resolve(handles []Handle, typeStrings []string) ([]Classifier, Kind, error) {
	if len(handles) > 0 && len(typeStrings) > 0 {
		return nil, "", fmt.Errorf("cannot specify both a type handle and a type string")
	}
	if len(handles) == 0 && len(typeStrings) == 0 {
		return nil, "", fmt.Errorf("no type handle or type string specified")
	}

	var classifiers []Classifier
	for _, h := range handles {
		c, err := ResolveHandle(h)
		if err != nil {
			return nil, "", err
		}
		classifiers = append(classifiers, c)
	}
	for _, s := range typeStrings {
		c, err := ResolveTypeString(s)
		if err != nil {
			return nil, "", err
		}
		classifiers = append(classifiers, c)
	}

	kind := classifiers[0].Kind
	for _, c := range classifiers[1:] {
		if c.Kind != kind {
			return nil, "", fmt.Errorf("non-matching types have been passed as a selector list: %s and %s", kind, c.Kind)
		}
	}
	return classifiers, kind, nil
}

// AutoTagBase derives the seed for auto-generated tags from a selector's
// classifiers: the trailing hierarchy segment of each, joined by "-".
func AutoTagBase(classifiers []Classifier) string {
	parts := make([]string, len(classifiers))
	for i, c := range classifiers {
		parts[i] = BaseTagSegment(c.TypeString)
	}
	return strings.Join(parts, "-")
}
