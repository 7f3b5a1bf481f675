// Package orm holds the typed row structs behind the entity kinds and
// the decoding of executed result rows back into them. The structs
// double as append selectors: each implements entity.Handle, so a row
// value (or a zero value standing for the whole kind) can be passed
// wherever a classifier can.
package orm

import (
	"time"

	"github.com/provq/provq/internal/entity"
)

// TimeLayout is the canonical stored text form of a timestamp: RFC 3339
// with a numeric offset, always rendered in UTC on write. A single
// fixed rendering keeps lexicographic comparison of stored text in
// time order, so filters can compare timestamps as strings.
const TimeLayout = "2006-01-02T15:04:05.999999999-07:00"

// Row is implemented by every stored entity row. Filters collapse row
// values to their surrogate key through it.
type Row interface {
	entity.Handle
	RowID() int64
}

// Node is one stored graph node.
type Node struct {
	ID          int64
	UUID        string
	NodeType    string
	ProcessType string
	Label       string
	Description string
	CTime       time.Time
	MTime       time.Time
	Attributes  map[string]any
	Extras      map[string]any
	UserID      int64
	ComputerID  *int64
}

// EntityClassifier lets a Node value stand for its own node type in an
// append call. The zero Node selects the node base type.
func (n Node) EntityClassifier() entity.Classifier {
	t := n.NodeType
	if t == "" {
		t = entity.BaseNodeType
	}
	return entity.Classifier{Kind: entity.KindNode, TypeString: t, ProcessType: n.ProcessType}
}

func (n Node) RowID() int64 { return n.ID }

// Group is one stored node grouping.
type Group struct {
	ID          int64
	UUID        string
	Label       string
	TypeString  string
	Description string
	Time        time.Time
	Extras      map[string]any
	UserID      int64
}

// EntityClassifier lets a Group value stand for its own group type in
// an append call. The zero Group selects the core group type.
func (g Group) EntityClassifier() entity.Classifier {
	t := g.TypeString
	if t == "" {
		t = entity.BaseGroupType
	}
	return entity.Classifier{Kind: entity.KindGroup, TypeString: entity.GroupTypePrefix + t}
}

func (g Group) RowID() int64 { return g.ID }

// User is one stored user account.
type User struct {
	ID          int64
	Email       string
	FirstName   string
	LastName    string
	Institution string
}

func (User) EntityClassifier() entity.Classifier {
	return entity.Classifier{Kind: entity.KindUser, TypeString: string(entity.KindUser)}
}

func (u User) RowID() int64 { return u.ID }

// Computer is one stored compute resource.
type Computer struct {
	ID            int64
	UUID          string
	Label         string
	Hostname      string
	Description   string
	SchedulerType string
	TransportType string
	Metadata      map[string]any
}

func (Computer) EntityClassifier() entity.Classifier {
	return entity.Classifier{Kind: entity.KindComputer, TypeString: string(entity.KindComputer)}
}

func (c Computer) RowID() int64 { return c.ID }

// Comment is one stored comment on a node.
type Comment struct {
	ID      int64
	UUID    string
	CTime   time.Time
	MTime   time.Time
	Content string
	UserID  int64
	NodeID  int64
}

func (Comment) EntityClassifier() entity.Classifier {
	return entity.Classifier{Kind: entity.KindComment, TypeString: string(entity.KindComment)}
}

func (c Comment) RowID() int64 { return c.ID }

// Log is one stored log record attached to a node.
type Log struct {
	ID         int64
	UUID       string
	Time       time.Time
	Loggername string
	Levelname  string
	Message    string
	Metadata   map[string]any
	NodeID     int64
}

func (Log) EntityClassifier() entity.Classifier {
	return entity.Classifier{Kind: entity.KindLog, TypeString: string(entity.KindLog)}
}

func (l Log) RowID() int64 { return l.ID }

// AuthInfo is one stored authorization record binding a user to a
// computer.
type AuthInfo struct {
	ID         int64
	UserID     int64
	ComputerID int64
	Enabled    bool
	AuthParams map[string]any
	Metadata   map[string]any
}

func (AuthInfo) EntityClassifier() entity.Classifier {
	return entity.Classifier{Kind: entity.KindAuthInfo, TypeString: string(entity.KindAuthInfo)}
}

func (a AuthInfo) RowID() int64 { return a.ID }

// Link is one directed edge between two nodes. Links are not entities:
// they carry no classifier and join only through their edge tag.
type Link struct {
	ID       int64
	InputID  int64
	OutputID int64
	Label    string
	Type     entity.LinkKind
}

// GroupNode is one group membership row.
type GroupNode struct {
	ID      int64
	GroupID int64
	NodeID  int64
}
