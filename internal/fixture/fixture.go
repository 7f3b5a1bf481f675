// Package fixture loads provenance graphs into a store from YAML
// documents. Nodes carry document-local keys so links, groups,
// comments and logs can reference them before ids exist; the whole
// document lands in one write batch or not at all.
package fixture

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/provq/provq/internal/entity"
	"github.com/provq/provq/internal/orm"
	"github.com/provq/provq/internal/store"
)

// Doc is one YAML graph document.
type Doc struct {
	Users     []UserSpec     `yaml:"users"`
	Computers []ComputerSpec `yaml:"computers"`
	Nodes     []NodeSpec     `yaml:"nodes"`
	Links     []LinkSpec     `yaml:"links"`
	Groups    []GroupSpec    `yaml:"groups"`
	Comments  []CommentSpec  `yaml:"comments"`
	Logs      []LogSpec      `yaml:"logs"`
	AuthInfos []AuthInfoSpec `yaml:"authinfos"`
}

type UserSpec struct {
	Email       string `yaml:"email"`
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	Institution string `yaml:"institution"`
}

type ComputerSpec struct {
	Label     string         `yaml:"label"`
	Hostname  string         `yaml:"hostname"`
	Scheduler string         `yaml:"scheduler"`
	Transport string         `yaml:"transport"`
	Metadata  map[string]any `yaml:"metadata"`
}

// NodeSpec describes one node. Key is the document-local handle other
// sections reference; it is not stored. User and Computer reference
// earlier sections by email and label; an empty user means the
// document's first user.
type NodeSpec struct {
	Key         string         `yaml:"key"`
	Type        string         `yaml:"type"`
	ProcessType string         `yaml:"process_type"`
	Label       string         `yaml:"label"`
	Description string         `yaml:"description"`
	Attributes  map[string]any `yaml:"attributes"`
	Extras      map[string]any `yaml:"extras"`
	User        string         `yaml:"user"`
	Computer    string         `yaml:"computer"`
	CTime       string         `yaml:"ctime"`
	MTime       string         `yaml:"mtime"`
}

type LinkSpec struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Type   string `yaml:"type"`
	Label  string `yaml:"label"`
}

type GroupSpec struct {
	Label       string   `yaml:"label"`
	TypeString  string   `yaml:"type_string"`
	Description string   `yaml:"description"`
	User        string   `yaml:"user"`
	Nodes       []string `yaml:"nodes"`
}

type CommentSpec struct {
	Node    string `yaml:"node"`
	User    string `yaml:"user"`
	Content string `yaml:"content"`
	CTime   string `yaml:"ctime"`
}

type LogSpec struct {
	Node       string         `yaml:"node"`
	Loggername string         `yaml:"loggername"`
	Levelname  string         `yaml:"levelname"`
	Message    string         `yaml:"message"`
	Metadata   map[string]any `yaml:"metadata"`
	Time       string         `yaml:"time"`
}

type AuthInfoSpec struct {
	User       string         `yaml:"user"`
	Computer   string         `yaml:"computer"`
	Enabled    bool           `yaml:"enabled"`
	AuthParams map[string]any `yaml:"auth_params"`
	Metadata   map[string]any `yaml:"metadata"`
}

// Graph maps the document's symbolic references to the stored ids.
type Graph struct {
	Users     map[string]int64 // by email
	Computers map[string]int64 // by label
	Nodes     map[string]int64 // by document key
	Groups    map[string]int64 // by label
}

// Load parses a YAML graph document and inserts it into st in one
// batch. A failing insert or dangling reference rolls everything back.
func Load(ctx context.Context, st *store.Store, data []byte) (*Graph, error) {
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parse document: %w", err)
	}
	return Insert(ctx, st, &doc)
}

// Insert writes a parsed document into st in one batch.
func Insert(ctx context.Context, st *store.Store, doc *Doc) (*Graph, error) {
	batch, err := st.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	defer batch.Rollback()

	g := &Graph{
		Users:     map[string]int64{},
		Computers: map[string]int64{},
		Nodes:     map[string]int64{},
		Groups:    map[string]int64{},
	}
	if err := insertDoc(ctx, batch, doc, g); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("fixture: commit: %w", err)
	}
	return g, nil
}

func insertDoc(ctx context.Context, batch *store.Batch, doc *Doc, g *Graph) error {
	for _, u := range doc.Users {
		id, err := batch.InsertUser(ctx, orm.User{
			Email:       u.Email,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			Institution: u.Institution,
		})
		if err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
		g.Users[u.Email] = id
	}
	for _, c := range doc.Computers {
		id, err := batch.InsertComputer(ctx, orm.Computer{
			Label:         c.Label,
			Hostname:      c.Hostname,
			SchedulerType: c.Scheduler,
			TransportType: c.Transport,
			Metadata:      c.Metadata,
		})
		if err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
		g.Computers[c.Label] = id
	}

	for _, n := range doc.Nodes {
		if n.Key == "" {
			return fmt.Errorf("fixture: node %q has no key", n.Label)
		}
		if _, ok := g.Nodes[n.Key]; ok {
			return fmt.Errorf("fixture: duplicate node key %q", n.Key)
		}
		userID, err := userFor(doc, g, n.User)
		if err != nil {
			return fmt.Errorf("fixture: node %q: %w", n.Key, err)
		}
		node := orm.Node{
			NodeType:    n.Type,
			ProcessType: n.ProcessType,
			Label:       n.Label,
			Description: n.Description,
			Attributes:  n.Attributes,
			Extras:      n.Extras,
			UserID:      userID,
		}
		if n.Computer != "" {
			cid, ok := g.Computers[n.Computer]
			if !ok {
				return fmt.Errorf("fixture: node %q references unknown computer %q", n.Key, n.Computer)
			}
			node.ComputerID = &cid
		}
		if node.CTime, err = parseTime(n.CTime); err != nil {
			return fmt.Errorf("fixture: node %q: %w", n.Key, err)
		}
		if node.MTime, err = parseTime(n.MTime); err != nil {
			return fmt.Errorf("fixture: node %q: %w", n.Key, err)
		}
		id, err := batch.InsertNode(ctx, node)
		if err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
		g.Nodes[n.Key] = id
	}

	for _, l := range doc.Links {
		inputID, ok := g.Nodes[l.Input]
		if !ok {
			return fmt.Errorf("fixture: link references unknown node %q", l.Input)
		}
		outputID, ok := g.Nodes[l.Output]
		if !ok {
			return fmt.Errorf("fixture: link references unknown node %q", l.Output)
		}
		if _, err := batch.InsertLink(ctx, orm.Link{
			InputID:  inputID,
			OutputID: outputID,
			Label:    l.Label,
			Type:     entity.LinkKind(l.Type),
		}); err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
	}

	for _, grp := range doc.Groups {
		userID, err := userFor(doc, g, grp.User)
		if err != nil {
			return fmt.Errorf("fixture: group %q: %w", grp.Label, err)
		}
		id, err := batch.InsertGroup(ctx, orm.Group{
			Label:       grp.Label,
			TypeString:  grp.TypeString,
			Description: grp.Description,
			UserID:      userID,
		})
		if err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
		g.Groups[grp.Label] = id
		for _, key := range grp.Nodes {
			nodeID, ok := g.Nodes[key]
			if !ok {
				return fmt.Errorf("fixture: group %q references unknown node %q", grp.Label, key)
			}
			if _, err := batch.InsertGroupNode(ctx, id, nodeID); err != nil {
				return fmt.Errorf("fixture: %w", err)
			}
		}
	}

	for _, c := range doc.Comments {
		nodeID, ok := g.Nodes[c.Node]
		if !ok {
			return fmt.Errorf("fixture: comment references unknown node %q", c.Node)
		}
		userID, err := userFor(doc, g, c.User)
		if err != nil {
			return fmt.Errorf("fixture: comment on %q: %w", c.Node, err)
		}
		comment := orm.Comment{Content: c.Content, UserID: userID, NodeID: nodeID}
		if comment.CTime, err = parseTime(c.CTime); err != nil {
			return fmt.Errorf("fixture: comment on %q: %w", c.Node, err)
		}
		if _, err := batch.InsertComment(ctx, comment); err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
	}

	for _, l := range doc.Logs {
		nodeID, ok := g.Nodes[l.Node]
		if !ok {
			return fmt.Errorf("fixture: log references unknown node %q", l.Node)
		}
		logRow := orm.Log{
			Loggername: l.Loggername,
			Levelname:  l.Levelname,
			Message:    l.Message,
			Metadata:   l.Metadata,
			NodeID:     nodeID,
		}
		var err error
		if logRow.Time, err = parseTime(l.Time); err != nil {
			return fmt.Errorf("fixture: log on %q: %w", l.Node, err)
		}
		if _, err := batch.InsertLog(ctx, logRow); err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
	}

	for _, a := range doc.AuthInfos {
		userID, ok := g.Users[a.User]
		if !ok {
			return fmt.Errorf("fixture: authinfo references unknown user %q", a.User)
		}
		computerID, ok := g.Computers[a.Computer]
		if !ok {
			return fmt.Errorf("fixture: authinfo references unknown computer %q", a.Computer)
		}
		if _, err := batch.InsertAuthInfo(ctx, orm.AuthInfo{
			UserID:     userID,
			ComputerID: computerID,
			Enabled:    a.Enabled,
			AuthParams: a.AuthParams,
			Metadata:   a.Metadata,
		}); err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
	}
	return nil
}

// userFor resolves a user reference; empty falls back to the
// document's first user.
func userFor(doc *Doc, g *Graph, email string) (int64, error) {
	if email == "" {
		if len(doc.Users) == 0 {
			return 0, fmt.Errorf("no users in document")
		}
		return g.Users[doc.Users[0].Email], nil
	}
	id, ok := g.Users[email]
	if !ok {
		return 0, fmt.Errorf("unknown user %q", email)
	}
	return id, nil
}

// parseTime reads an optional RFC 3339 timestamp; empty means unset
// and lets the store default to now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
