package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is a trie of registered node type strings, keyed by their
// dot-delimited segments. It preserves the exact wire format of every
// registered string; the trie exists for prefix queries, not storage.
//
// A Registry is not safe for concurrent mutation. The package-level
// Default registry is populated at init and treated as read-only.
type Registry struct {
	root *typeTrieNode
	all  map[string]bool
}

type typeTrieNode struct {
	children map[string]*typeTrieNode
	terminal bool
}

// NewRegistry returns an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		root: &typeTrieNode{children: map[string]*typeTrieNode{}},
		all:  map[string]bool{},
	}
}

// Register adds a node type string to the registry.
// Registering an already-present string is a no-op.
func (r *Registry) Register(typeString string) error {
	if err := ValidateNodeTypeString(typeString); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	node := r.root
	for _, segment := range segmentsOf(typeString) {
		child, ok := node.children[segment]
		if !ok {
			child = &typeTrieNode{children: map[string]*typeTrieNode{}}
			node.children[segment] = child
		}
		node = child
	}
	node.terminal = true
	r.all[typeString] = true
	return nil
}

// MustRegister is like Register but panics on a malformed type string.
// Used for the built-in taxonomy.
func (r *Registry) MustRegister(typeStrings ...string) *Registry {
	for _, t := range typeStrings {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Contains reports whether typeString is registered.
func (r *Registry) Contains(typeString string) bool {
	return r.all[typeString]
}

// All returns every registered type string, sorted.
func (r *Registry) All() []string {
	out := make([]string, 0, len(r.all))
	for t := range r.all {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Subtypes returns the registered strings a subclass filter on
// typeString matches: those sharing its hierarchical prefix. The type
// itself is included when registered. Segment boundaries are respected,
// so "data.core.int.Int." never picks up "data.core.intarray.*".
func (r *Registry) Subtypes(typeString string) []string {
	prefix := QueryTypePrefix(typeString)
	if prefix == "" {
		return r.All()
	}

	node := r.root
	for _, segment := range segmentsOf(prefix) {
		child, ok := node.children[segment]
		if !ok {
			return nil
		}
		node = child
	}

	var out []string
	collectTerminals(node, strings.TrimSuffix(prefix, "."), &out)
	sort.Strings(out)
	return out
}

func collectTerminals(node *typeTrieNode, path string, out *[]string) {
	if node.terminal {
		*out = append(*out, path+".")
	}
	for segment, child := range node.children {
		collectTerminals(child, path+"."+segment, out)
	}
}

func segmentsOf(typeString string) []string {
	return strings.Split(strings.TrimSuffix(typeString, "."), ".")
}

// Default is the built-in node taxonomy. Plugins extend it through
// Register at startup; queries against unregistered but well-formed
// type strings are still legal and simply match stored rows by prefix.
var Default = NewRegistry().MustRegister(
	"node.Node.",
	"data.Data.",
	"data.core.array.ArrayData.",
	"data.core.dict.Dict.",
	"data.core.float.Float.",
	"data.core.folder.FolderData.",
	"data.core.int.Int.",
	"data.core.list.List.",
	"data.core.remote.RemoteData.",
	"data.core.str.Str.",
	"data.core.structure.StructureData.",
	"process.ProcessNode.",
	"process.calculation.CalculationNode.",
	"process.calculation.calcjob.CalcJobNode.",
	"process.calculation.calcfunction.CalcFunctionNode.",
	"process.workflow.WorkflowNode.",
	"process.workflow.workchain.WorkChainNode.",
	"process.workflow.workfunction.WorkFunctionNode.",
)
