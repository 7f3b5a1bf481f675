package entity

// Kind identifies one of the queryable entity categories.
// The set is closed: join resolution and SQL compilation type-switch over
// it exhaustively.
type Kind string

const (
	KindNode     Kind = "node"
	KindGroup    Kind = "group"
	KindUser     Kind = "user"
	KindComputer Kind = "computer"
	KindAuthInfo Kind = "authinfo"
	KindComment  Kind = "comment"
	KindLog      Kind = "log"
)

// ValidKinds defines the allowed entity kinds.
var ValidKinds = map[Kind]bool{
	KindNode:     true,
	KindGroup:    true,
	KindUser:     true,
	KindComputer: true,
	KindAuthInfo: true,
	KindComment:  true,
	KindLog:      true,
}

// IsValid reports whether k names a known entity kind.
func (k Kind) IsValid() bool {
	return ValidKinds[k]
}

func (k Kind) String() string {
	return string(k)
}

// LinkKind identifies the kind of a directed link between two nodes.
type LinkKind string

const (
	LinkCreate    LinkKind = "create"
	LinkInputCalc LinkKind = "input_calc"
	LinkReturn    LinkKind = "return"
	LinkCallCalc  LinkKind = "call_calc"
	LinkCallWork  LinkKind = "call_work"
	LinkInputWork LinkKind = "input_work"
)

// ValidLinkKinds defines the allowed link kinds.
var ValidLinkKinds = map[LinkKind]bool{
	LinkCreate:    true,
	LinkInputCalc: true,
	LinkReturn:    true,
	LinkCallCalc:  true,
	LinkCallWork:  true,
	LinkInputWork: true,
}

// IsValid reports whether k names a known link kind.
func (k LinkKind) IsValid() bool {
	return ValidLinkKinds[k]
}

func (k LinkKind) String() string {
	return string(k)
}

// ClosureLinkKinds lists the link kinds traversed by the recursive
// ancestor/descendant closures: the data-flow kinds only. Control-flow
// links (return, call_calc, call_work, input_work) are stored and
// queryable through direct joins but are invisible to transitive
// closure. This is domain policy, not an optimization; do not widen it.
var ClosureLinkKinds = []LinkKind{LinkCreate, LinkInputCalc}
