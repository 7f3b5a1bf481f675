package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/provq/provq/internal/orm"
)

// GetNode retrieves a single node by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetNode(ctx context.Context, id int64) (orm.Node, error) {
	return scanNode(s.db.QueryRowContext(ctx, `
		SELECT id, uuid, node_type, process_type, label, description, ctime, mtime, attributes, extras, user_id, computer_id
		FROM nodes
		WHERE id = ?
	`, id))
}

// GetNodeByUUID retrieves a single node by uuid.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetNodeByUUID(ctx context.Context, uuid string) (orm.Node, error) {
	return scanNode(s.db.QueryRowContext(ctx, `
		SELECT id, uuid, node_type, process_type, label, description, ctime, mtime, attributes, extras, user_id, computer_id
		FROM nodes
		WHERE uuid = ?
	`, uuid))
}

// GetGroup retrieves a single group by id.
func (s *Store) GetGroup(ctx context.Context, id int64) (orm.Group, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uuid, label, type_string, description, time, extras, user_id
		FROM groups_
		WHERE id = ?
	`, id)

	var g orm.Group
	var extras string
	if err := row.Scan(&g.ID, &g.UUID, &g.Label, &g.TypeString, &g.Description, &g.Time, &extras, &g.UserID); err != nil {
		return orm.Group{}, err
	}
	var err error
	if g.Extras, err = orm.DecodeJSONObject(extras); err != nil {
		return orm.Group{}, fmt.Errorf("group %d extras: %w", g.ID, err)
	}
	return g, nil
}

// GetUser retrieves a single user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (orm.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, institution
		FROM users
		WHERE id = ?
	`, id)

	var u orm.User
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Institution); err != nil {
		return orm.User{}, err
	}
	return u, nil
}

// GetComputer retrieves a single computer by id.
func (s *Store) GetComputer(ctx context.Context, id int64) (orm.Computer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uuid, label, hostname, description, scheduler_type, transport_type, metadata
		FROM computers
		WHERE id = ?
	`, id)

	var c orm.Computer
	var metadata string
	if err := row.Scan(&c.ID, &c.UUID, &c.Label, &c.Hostname, &c.Description, &c.SchedulerType, &c.TransportType, &metadata); err != nil {
		return orm.Computer{}, err
	}
	var err error
	if c.Metadata, err = orm.DecodeJSONObject(metadata); err != nil {
		return orm.Computer{}, fmt.Errorf("computer %d metadata: %w", c.ID, err)
	}
	return c, nil
}

// GetComment retrieves a single comment by id.
func (s *Store) GetComment(ctx context.Context, id int64) (orm.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uuid, ctime, mtime, content, user_id, node_id
		FROM comments
		WHERE id = ?
	`, id)

	var c orm.Comment
	if err := row.Scan(&c.ID, &c.UUID, &c.CTime, &c.MTime, &c.Content, &c.UserID, &c.NodeID); err != nil {
		return orm.Comment{}, err
	}
	return c, nil
}

// GetLog retrieves a single log record by id.
func (s *Store) GetLog(ctx context.Context, id int64) (orm.Log, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uuid, time, loggername, levelname, message, metadata, node_id
		FROM logs
		WHERE id = ?
	`, id)

	var l orm.Log
	var metadata string
	if err := row.Scan(&l.ID, &l.UUID, &l.Time, &l.Loggername, &l.Levelname, &l.Message, &metadata, &l.NodeID); err != nil {
		return orm.Log{}, err
	}
	var err error
	if l.Metadata, err = orm.DecodeJSONObject(metadata); err != nil {
		return orm.Log{}, fmt.Errorf("log %d metadata: %w", l.ID, err)
	}
	return l, nil
}

// GetAuthInfo retrieves a single authinfo by id.
func (s *Store) GetAuthInfo(ctx context.Context, id int64) (orm.AuthInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, computer_id, enabled, auth_params, metadata
		FROM authinfos
		WHERE id = ?
	`, id)

	var a orm.AuthInfo
	var params, metadata string
	if err := row.Scan(&a.ID, &a.UserID, &a.ComputerID, &a.Enabled, &params, &metadata); err != nil {
		return orm.AuthInfo{}, err
	}
	var err error
	if a.AuthParams, err = orm.DecodeJSONObject(params); err != nil {
		return orm.AuthInfo{}, fmt.Errorf("authinfo %d auth_params: %w", a.ID, err)
	}
	if a.Metadata, err = orm.DecodeJSONObject(metadata); err != nil {
		return orm.AuthInfo{}, fmt.Errorf("authinfo %d metadata: %w", a.ID, err)
	}
	return a, nil
}

func scanNode(row *sql.Row) (orm.Node, error) {
	var n orm.Node
	var processType sql.NullString
	var computerID sql.NullInt64
	var attrs, extras string
	if err := row.Scan(
		&n.ID, &n.UUID, &n.NodeType, &processType, &n.Label, &n.Description,
		&n.CTime, &n.MTime, &attrs, &extras, &n.UserID, &computerID,
	); err != nil {
		return orm.Node{}, err
	}
	n.ProcessType = processType.String
	if computerID.Valid {
		n.ComputerID = &computerID.Int64
	}
	var err error
	if n.Attributes, err = orm.DecodeJSONObject(attrs); err != nil {
		return orm.Node{}, fmt.Errorf("node %d attributes: %w", n.ID, err)
	}
	if n.Extras, err = orm.DecodeJSONObject(extras); err != nil {
		return orm.Node{}, fmt.Errorf("node %d extras: %w", n.ID, err)
	}
	return n, nil
}

// Stats summarizes table populations. The CLI reports it after imports
// and seeds.
type Stats struct {
	Users      int64
	Computers  int64
	Nodes      int64
	Links      int64
	Groups     int64
	GroupNodes int64
	Comments   int64
	Logs       int64
	AuthInfos  int64
}

// Stats counts the rows in every table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int64
	}{
		{"users", &st.Users},
		{"computers", &st.Computers},
		{"nodes", &st.Nodes},
		{"links", &st.Links},
		{"groups_", &st.Groups},
		{"group_nodes", &st.GroupNodes},
		{"comments", &st.Comments},
		{"logs", &st.Logs},
		{"authinfos", &st.AuthInfos},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return st, nil
}
