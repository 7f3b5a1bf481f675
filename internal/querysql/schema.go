package querysql

import (
	"fmt"
	"strings"

	"github.com/provq/provq/internal/entity"
)

// ColumnType classifies a column for compilation and result conversion.
type ColumnType int

const (
	ColInt ColumnType = iota
	ColText
	ColFloat
	ColBool
	ColTime
	ColJSON
)

// Column is one schema column: its SQL name and value class.
type Column struct {
	Name string
	Type ColumnType
}

// Table returns the SQL table for an entity kind.
func Table(kind entity.Kind) string {
	return tableNames[kind]
}

// GROUPS is a window-frame keyword in current SQLite, so the group
// table carries a trailing underscore and stays unquoted everywhere.
var tableNames = map[entity.Kind]string{
	entity.KindNode:     "nodes",
	entity.KindGroup:    "groups_",
	entity.KindUser:     "users",
	entity.KindComputer: "computers",
	entity.KindComment:  "comments",
	entity.KindLog:      "logs",
	entity.KindAuthInfo: "authinfos",
}

// LinkTable and GroupNodeTable name the two edge tables.
const (
	LinkTable      = "links"
	GroupNodeTable = "group_nodes"
)

var kindColumns = map[entity.Kind][]Column{
	entity.KindNode: {
		{"id", ColInt},
		{"uuid", ColText},
		{"node_type", ColText},
		{"process_type", ColText},
		{"label", ColText},
		{"description", ColText},
		{"ctime", ColTime},
		{"mtime", ColTime},
		{"attributes", ColJSON},
		{"extras", ColJSON},
		{"user_id", ColInt},
		{"computer_id", ColInt},
	},
	entity.KindGroup: {
		{"id", ColInt},
		{"uuid", ColText},
		{"label", ColText},
		{"type_string", ColText},
		{"description", ColText},
		{"time", ColTime},
		{"extras", ColJSON},
		{"user_id", ColInt},
	},
	entity.KindUser: {
		{"id", ColInt},
		{"email", ColText},
		{"first_name", ColText},
		{"last_name", ColText},
		{"institution", ColText},
	},
	entity.KindComputer: {
		{"id", ColInt},
		{"uuid", ColText},
		{"label", ColText},
		{"hostname", ColText},
		{"description", ColText},
		{"scheduler_type", ColText},
		{"transport_type", ColText},
		{"metadata", ColJSON},
	},
	entity.KindComment: {
		{"id", ColInt},
		{"uuid", ColText},
		{"ctime", ColTime},
		{"mtime", ColTime},
		{"content", ColText},
		{"user_id", ColInt},
		{"node_id", ColInt},
	},
	entity.KindLog: {
		{"id", ColInt},
		{"uuid", ColText},
		{"time", ColTime},
		{"loggername", ColText},
		{"levelname", ColText},
		{"message", ColText},
		{"metadata", ColJSON},
		{"node_id", ColInt},
	},
	entity.KindAuthInfo: {
		{"id", ColInt},
		{"user_id", ColInt},
		{"computer_id", ColInt},
		{"enabled", ColBool},
		{"auth_params", ColJSON},
		{"metadata", ColJSON},
	},
}

var linkColumns = []Column{
	{"id", ColInt},
	{"input_id", ColInt},
	{"output_id", ColInt},
	{"label", ColText},
	{"type", ColText},
}

var groupNodeColumns = []Column{
	{"id", ColInt},
	{"group_id", ColInt},
	{"node_id", ColInt},
}

// closureColumns are the columns of a recursive-closure CTE. The path
// column exists only when the query mentions it.
func closureColumns(withPath bool) []Column {
	cols := []Column{
		{"ancestor_id", ColInt},
		{"descendant_id", ColInt},
		{"depth", ColInt},
	}
	if withPath {
		cols = append(cols, Column{"path", ColJSON})
	}
	return cols
}

// ColumnsFor returns the schema columns of an entity kind in table
// declaration order. The order is part of the wire contract: entity
// projections emit exactly these columns.
func ColumnsFor(kind entity.Kind) []Column {
	return kindColumns[kind]
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

func lookupColumn(cols []Column, name string) (Column, bool) {
	for _, col := range cols {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// quoteIdent double-quotes an identifier for SQLite. Tags are caller
// chosen and edge tags contain the -- delimiter, so every alias is
// quoted.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// jsonPath renders the segments below a JSON column as a SQLite path
// expression. The path is always bound as a parameter, never spliced
// into the SQL text.
func jsonPath(segments []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range segments {
		if isAllDigits(seg) {
			fmt.Fprintf(&b, "[%s]", seg)
			continue
		}
		if isPlainKey(seg) {
			b.WriteString(".")
			b.WriteString(seg)
			continue
		}
		b.WriteString(`."`)
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(seg))
		b.WriteString(`"`)
	}
	return b.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isPlainKey(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
