package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/provq/provq/internal/entity"
	"github.com/provq/provq/internal/orm"
)

// execer abstracts Store and Batch writes: plain inserts run on the
// pooled connection, batched inserts on the transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InsertUser inserts a user, keyed by email. A duplicate email is a
// no-op; the returned id is the surviving row's either way.
func (s *Store) InsertUser(ctx context.Context, u orm.User) (int64, error) {
	return insertUser(ctx, s.db, u)
}

// InsertComputer inserts a computer, keyed by label. The uuid is
// generated when empty.
func (s *Store) InsertComputer(ctx context.Context, c orm.Computer) (int64, error) {
	return insertComputer(ctx, s.db, c)
}

// InsertNode inserts a node, keyed by uuid. The uuid is generated and
// ctime/mtime default to now when unset.
func (s *Store) InsertNode(ctx context.Context, n orm.Node) (int64, error) {
	return insertNode(ctx, s.db, n)
}

// InsertLink inserts a directed link. The full quadruple
// (input, output, label, type) is the identity; duplicates are no-ops.
func (s *Store) InsertLink(ctx context.Context, l orm.Link) (int64, error) {
	return insertLink(ctx, s.db, l)
}

// InsertGroup inserts a group, keyed by (label, type_string). An empty
// type string means the core group type.
func (s *Store) InsertGroup(ctx context.Context, g orm.Group) (int64, error) {
	return insertGroup(ctx, s.db, g)
}

// InsertGroupNode adds a node to a group. Membership is unique;
// re-adding is a no-op.
func (s *Store) InsertGroupNode(ctx context.Context, groupID, nodeID int64) (int64, error) {
	return insertGroupNode(ctx, s.db, groupID, nodeID)
}

// InsertComment inserts a comment on a node, keyed by uuid.
func (s *Store) InsertComment(ctx context.Context, c orm.Comment) (int64, error) {
	return insertComment(ctx, s.db, c)
}

// InsertLog inserts a log record for a node, keyed by uuid.
func (s *Store) InsertLog(ctx context.Context, l orm.Log) (int64, error) {
	return insertLog(ctx, s.db, l)
}

// InsertAuthInfo inserts an authorization record, keyed by the
// (user, computer) pair.
func (s *Store) InsertAuthInfo(ctx context.Context, a orm.AuthInfo) (int64, error) {
	return insertAuthInfo(ctx, s.db, a)
}

// Batch groups writes in one transaction, for graph imports that must
// land or roll back as a unit. Rollback after Commit is a no-op, so
// defer it unconditionally.
type Batch struct {
	tx *sql.Tx
}

// Begin starts a write batch.
func (s *Store) Begin(ctx context.Context) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &Batch{tx: tx}, nil
}

func (b *Batch) InsertUser(ctx context.Context, u orm.User) (int64, error) {
	return insertUser(ctx, b.tx, u)
}

func (b *Batch) InsertComputer(ctx context.Context, c orm.Computer) (int64, error) {
	return insertComputer(ctx, b.tx, c)
}

func (b *Batch) InsertNode(ctx context.Context, n orm.Node) (int64, error) {
	return insertNode(ctx, b.tx, n)
}

func (b *Batch) InsertLink(ctx context.Context, l orm.Link) (int64, error) {
	return insertLink(ctx, b.tx, l)
}

func (b *Batch) InsertGroup(ctx context.Context, g orm.Group) (int64, error) {
	return insertGroup(ctx, b.tx, g)
}

func (b *Batch) InsertGroupNode(ctx context.Context, groupID, nodeID int64) (int64, error) {
	return insertGroupNode(ctx, b.tx, groupID, nodeID)
}

func (b *Batch) InsertComment(ctx context.Context, c orm.Comment) (int64, error) {
	return insertComment(ctx, b.tx, c)
}

func (b *Batch) InsertLog(ctx context.Context, l orm.Log) (int64, error) {
	return insertLog(ctx, b.tx, l)
}

func (b *Batch) InsertAuthInfo(ctx context.Context, a orm.AuthInfo) (int64, error) {
	return insertAuthInfo(ctx, b.tx, a)
}

func (b *Batch) Commit() error   { return b.tx.Commit() }
func (b *Batch) Rollback() error { return b.tx.Rollback() }

func insertUser(ctx context.Context, e execer, u orm.User) (int64, error) {
	if u.Email == "" {
		return 0, fmt.Errorf("insert user: email is required")
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO users (email, first_name, last_name, institution)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`, u.Email, u.FirstName, u.LastName, u.Institution)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return survivingID(ctx, e, res, `SELECT id FROM users WHERE email = ?`, u.Email)
}

func insertComputer(ctx context.Context, e execer, c orm.Computer) (int64, error) {
	if c.Label == "" {
		return 0, fmt.Errorf("insert computer: label is required")
	}
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	metadata, err := marshalJSONObject(c.Metadata)
	if err != nil {
		return 0, fmt.Errorf("insert computer: %w", err)
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO computers (uuid, label, hostname, description, scheduler_type, transport_type, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, c.UUID, c.Label, c.Hostname, c.Description, c.SchedulerType, c.TransportType, metadata)
	if err != nil {
		return 0, fmt.Errorf("insert computer: %w", err)
	}
	return survivingID(ctx, e, res, `SELECT id FROM computers WHERE label = ?`, c.Label)
}

func insertNode(ctx context.Context, e execer, n orm.Node) (int64, error) {
	if err := entity.ValidateNodeTypeString(n.NodeType); err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	if n.UserID == 0 {
		return 0, fmt.Errorf("insert node: user id is required")
	}
	if n.UUID == "" {
		n.UUID = uuid.NewString()
	}
	n.CTime = utcOrNow(n.CTime)
	if n.MTime.IsZero() {
		n.MTime = n.CTime
	} else {
		n.MTime = n.MTime.UTC()
	}
	attrs, err := marshalJSONObject(n.Attributes)
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	extras, err := marshalJSONObject(n.Extras)
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO nodes (uuid, node_type, process_type, label, description, ctime, mtime, attributes, extras, user_id, computer_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO NOTHING
	`, n.UUID, n.NodeType, nullableString(n.ProcessType), n.Label, n.Description,
		timeText(n.CTime), timeText(n.MTime), attrs, extras, n.UserID, nullableID(n.ComputerID))
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	return survivingID(ctx, e, res, `SELECT id FROM nodes WHERE uuid = ?`, n.UUID)
}

func insertLink(ctx context.Context, e execer, l orm.Link) (int64, error) {
	if !l.Type.IsValid() {
		return 0, fmt.Errorf("insert link: unrecognized link type %q", l.Type)
	}
	if l.InputID == 0 || l.OutputID == 0 {
		return 0, fmt.Errorf("insert link: both endpoint ids are required")
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO links (input_id, output_id, label, type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, l.InputID, l.OutputID, l.Label, string(l.Type))
	if err != nil {
		return 0, fmt.Errorf("insert link: %w", err)
	}
	return survivingID(ctx, e, res,
		`SELECT id FROM links WHERE input_id = ? AND output_id = ? AND label = ? AND type = ?`,
		l.InputID, l.OutputID, l.Label, string(l.Type))
}

func insertGroup(ctx context.Context, e execer, g orm.Group) (int64, error) {
	if g.Label == "" {
		return 0, fmt.Errorf("insert group: label is required")
	}
	if g.UserID == 0 {
		return 0, fmt.Errorf("insert group: user id is required")
	}
	if g.TypeString == "" {
		g.TypeString = entity.BaseGroupType
	}
	if g.UUID == "" {
		g.UUID = uuid.NewString()
	}
	g.Time = utcOrNow(g.Time)
	extras, err := marshalJSONObject(g.Extras)
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO groups_ (uuid, label, type_string, description, time, extras, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, g.UUID, g.Label, g.TypeString, g.Description, timeText(g.Time), extras, g.UserID)
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	return survivingID(ctx, e, res,
		`SELECT id FROM groups_ WHERE label = ? AND type_string = ?`, g.Label, g.TypeString)
}

func insertGroupNode(ctx context.Context, e execer, groupID, nodeID int64) (int64, error) {
	res, err := e.ExecContext(ctx, `
		INSERT INTO group_nodes (group_id, node_id)
		VALUES (?, ?)
		ON CONFLICT(group_id, node_id) DO NOTHING
	`, groupID, nodeID)
	if err != nil {
		return 0, fmt.Errorf("insert group membership: %w", err)
	}
	return survivingID(ctx, e, res,
		`SELECT id FROM group_nodes WHERE group_id = ? AND node_id = ?`, groupID, nodeID)
}

func insertComment(ctx context.Context, e execer, c orm.Comment) (int64, error) {
	if c.UserID == 0 || c.NodeID == 0 {
		return 0, fmt.Errorf("insert comment: user and node ids are required")
	}
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	c.CTime = utcOrNow(c.CTime)
	if c.MTime.IsZero() {
		c.MTime = c.CTime
	} else {
		c.MTime = c.MTime.UTC()
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO comments (uuid, ctime, mtime, content, user_id, node_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO NOTHING
	`, c.UUID, timeText(c.CTime), timeText(c.MTime), c.Content, c.UserID, c.NodeID)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	return survivingID(ctx, e, res, `SELECT id FROM comments WHERE uuid = ?`, c.UUID)
}

func insertLog(ctx context.Context, e execer, l orm.Log) (int64, error) {
	if l.NodeID == 0 {
		return 0, fmt.Errorf("insert log: node id is required")
	}
	if l.UUID == "" {
		l.UUID = uuid.NewString()
	}
	l.Time = utcOrNow(l.Time)
	metadata, err := marshalJSONObject(l.Metadata)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO logs (uuid, time, loggername, levelname, message, metadata, node_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO NOTHING
	`, l.UUID, timeText(l.Time), l.Loggername, l.Levelname, l.Message, metadata, l.NodeID)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	return survivingID(ctx, e, res, `SELECT id FROM logs WHERE uuid = ?`, l.UUID)
}

func insertAuthInfo(ctx context.Context, e execer, a orm.AuthInfo) (int64, error) {
	if a.UserID == 0 || a.ComputerID == 0 {
		return 0, fmt.Errorf("insert authinfo: user and computer ids are required")
	}
	params, err := marshalJSONObject(a.AuthParams)
	if err != nil {
		return 0, fmt.Errorf("insert authinfo: %w", err)
	}
	metadata, err := marshalJSONObject(a.Metadata)
	if err != nil {
		return 0, fmt.Errorf("insert authinfo: %w", err)
	}
	res, err := e.ExecContext(ctx, `
		INSERT INTO authinfos (user_id, computer_id, enabled, auth_params, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, computer_id) DO NOTHING
	`, a.UserID, a.ComputerID, a.Enabled, params, metadata)
	if err != nil {
		return 0, fmt.Errorf("insert authinfo: %w", err)
	}
	return survivingID(ctx, e, res,
		`SELECT id FROM authinfos WHERE user_id = ? AND computer_id = ?`, a.UserID, a.ComputerID)
}

// survivingID resolves the id after an idempotent insert: the new
// row's when one was inserted, the existing row's after a conflict.
func survivingID(ctx context.Context, e execer, res sql.Result, query string, args ...any) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
		return id, nil
	}
	var id int64
	if err := e.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("select existing row: %w", err)
	}
	return id, nil
}
