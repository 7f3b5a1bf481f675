package orm

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/provq/provq/internal/entity"
	"github.com/provq/provq/internal/querysql"
)

// RowDecoder converts scanned result rows into one Go value per cell.
// Entity cells become typed row structs, JSON document cells decode to
// maps and slices, everything else passes through as the SQL value.
type RowDecoder struct {
	cells []querysql.Cell
	width int
}

func NewRowDecoder(cells []querysql.Cell) *RowDecoder {
	w := 0
	for _, cell := range cells {
		w += cell.Width
	}
	return &RowDecoder{cells: cells, width: w}
}

// Width returns the number of SQL columns the decoder expects.
func (d *RowDecoder) Width() int { return d.width }

// Cells returns the cell layout the decoder was built from.
func (d *RowDecoder) Cells() []querysql.Cell { return d.cells }

// DecodeRow scans the current row and converts it cell by cell.
func (d *RowDecoder) DecodeRow(rows *sql.Rows) ([]any, error) {
	raw := make([]any, d.width)
	ptrs := make([]any, d.width)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan result row: %w", err)
	}
	out := make([]any, len(d.cells))
	offset := 0
	for i, cell := range d.cells {
		v, err := decodeCell(cell, raw[offset:offset+cell.Width])
		if err != nil {
			return nil, err
		}
		out[i] = v
		offset += cell.Width
	}
	return out, nil
}

func decodeCell(cell querysql.Cell, raw []any) (any, error) {
	if cell.IsEntity {
		return decodeEntity(cell.Kind, raw)
	}
	return decodeScalar(cell, raw[0])
}

// decodeEntity builds the typed row struct for an entity cell. The
// values arrive in querysql.ColumnsFor order. An outer join miss makes
// every column NULL; the whole cell decodes to nil then.
func decodeEntity(kind entity.Kind, vals []any) (any, error) {
	cols := querysql.ColumnsFor(kind)
	if len(vals) != len(cols) {
		return nil, fmt.Errorf("entity cell for kind %s expects %d columns, got %d", kind, len(cols), len(vals))
	}
	if vals[0] == nil {
		return nil, nil
	}
	c := &fieldCursor{kind: kind, cols: cols, vals: vals}
	var v any
	switch kind {
	case entity.KindNode:
		v = decodeNode(c)
	case entity.KindGroup:
		v = decodeGroup(c)
	case entity.KindUser:
		v = decodeUser(c)
	case entity.KindComputer:
		v = decodeComputer(c)
	case entity.KindComment:
		v = decodeComment(c)
	case entity.KindLog:
		v = decodeLog(c)
	case entity.KindAuthInfo:
		v = decodeAuthInfo(c)
	default:
		return nil, fmt.Errorf("unsupported entity kind %q", kind)
	}
	if c.err != nil {
		return nil, c.err
	}
	return v, nil
}

func decodeNode(c *fieldCursor) *Node {
	return &Node{
		ID:          c.int64Val(),
		UUID:        c.stringVal(),
		NodeType:    c.stringVal(),
		ProcessType: c.stringVal(),
		Label:       c.stringVal(),
		Description: c.stringVal(),
		CTime:       c.timeVal(),
		MTime:       c.timeVal(),
		Attributes:  c.jsonObject(),
		Extras:      c.jsonObject(),
		UserID:      c.int64Val(),
		ComputerID:  c.optInt64(),
	}
}

func decodeGroup(c *fieldCursor) *Group {
	return &Group{
		ID:          c.int64Val(),
		UUID:        c.stringVal(),
		Label:       c.stringVal(),
		TypeString:  c.stringVal(),
		Description: c.stringVal(),
		Time:        c.timeVal(),
		Extras:      c.jsonObject(),
		UserID:      c.int64Val(),
	}
}

func decodeUser(c *fieldCursor) *User {
	return &User{
		ID:          c.int64Val(),
		Email:       c.stringVal(),
		FirstName:   c.stringVal(),
		LastName:    c.stringVal(),
		Institution: c.stringVal(),
	}
}

func decodeComputer(c *fieldCursor) *Computer {
	return &Computer{
		ID:            c.int64Val(),
		UUID:          c.stringVal(),
		Label:         c.stringVal(),
		Hostname:      c.stringVal(),
		Description:   c.stringVal(),
		SchedulerType: c.stringVal(),
		TransportType: c.stringVal(),
		Metadata:      c.jsonObject(),
	}
}

func decodeComment(c *fieldCursor) *Comment {
	return &Comment{
		ID:      c.int64Val(),
		UUID:    c.stringVal(),
		CTime:   c.timeVal(),
		MTime:   c.timeVal(),
		Content: c.stringVal(),
		UserID:  c.int64Val(),
		NodeID:  c.int64Val(),
	}
}

func decodeLog(c *fieldCursor) *Log {
	return &Log{
		ID:         c.int64Val(),
		UUID:       c.stringVal(),
		Time:       c.timeVal(),
		Loggername: c.stringVal(),
		Levelname:  c.stringVal(),
		Message:    c.stringVal(),
		Metadata:   c.jsonObject(),
		NodeID:     c.int64Val(),
	}
}

func decodeAuthInfo(c *fieldCursor) *AuthInfo {
	return &AuthInfo{
		ID:         c.int64Val(),
		UserID:     c.int64Val(),
		ComputerID: c.int64Val(),
		Enabled:    c.boolVal(),
		AuthParams: c.jsonObject(),
		Metadata:   c.jsonObject(),
	}
}

// decodeScalar converts one projected column. The cell's JSON shape
// drives decoding: json_extract collapses JSON strings and numbers to
// SQL scalars, so only object- and array-shaped text is decodable for
// path cells, while whole-document cells always hold valid JSON.
func decodeScalar(cell querysql.Cell, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch cell.JSON {
	case querysql.JSONDoc:
		text, ok := textValue(v)
		if !ok {
			return nil, fmt.Errorf("cell %s.%s: json document column returned %T", cell.Tag, cell.Key, v)
		}
		return decodeJSONText(text)
	case querysql.JSONMaybe:
		text, ok := textValue(v)
		if !ok {
			return plainValue(v), nil
		}
		if len(text) > 0 && (text[0] == '{' || text[0] == '[') {
			if dv, err := decodeJSONText(text); err == nil {
				return dv, nil
			}
		}
		return text, nil
	default:
		return plainValue(v), nil
	}
}

// plainValue keeps driver values as-is except BLOB-shaped text, which
// becomes a string so results print and compare naturally.
func plainValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func textValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	}
	return "", false
}

// DecodeJSONObject parses one stored JSON document column into a map.
func DecodeJSONObject(text string) (map[string]any, error) {
	if text == "" || text == "{}" {
		return map[string]any{}, nil
	}
	v, err := decodeJSONText(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected json object, got %T", v)
	}
	return obj, nil
}

func decodeJSONText(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json value: %w", err)
	}
	return normalizeJSON(v), nil
}

// normalizeJSON rewrites json.Number leaves: integral numbers become
// int64, everything else float64. Integers beyond 2^53 survive the
// trip that a plain float64 decode would truncate.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeJSON(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeJSON(e)
		}
		return t
	default:
		return v
	}
}

// fieldCursor walks an entity cell's raw values in column order,
// coercing driver types and recording the first mismatch.
type fieldCursor struct {
	kind entity.Kind
	cols []querysql.Column
	vals []any
	i    int
	err  error
}

func (c *fieldCursor) next() (querysql.Column, any) {
	col := c.cols[c.i]
	v := c.vals[c.i]
	c.i++
	return col, v
}

func (c *fieldCursor) fail(col querysql.Column, want string, v any) {
	if c.err == nil {
		c.err = fmt.Errorf("%s.%s: expected %s, got %T", c.kind, col.Name, want, v)
	}
}

func (c *fieldCursor) int64Val() int64 {
	col, v := c.next()
	n, ok := v.(int64)
	if !ok {
		c.fail(col, "integer", v)
		return 0
	}
	return n
}

func (c *fieldCursor) optInt64() *int64 {
	col, v := c.next()
	if v == nil {
		return nil
	}
	n, ok := v.(int64)
	if !ok {
		c.fail(col, "integer or null", v)
		return nil
	}
	return &n
}

func (c *fieldCursor) stringVal() string {
	col, v := c.next()
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	c.fail(col, "text", v)
	return ""
}

func (c *fieldCursor) boolVal() bool {
	col, v := c.next()
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	}
	c.fail(col, "boolean", v)
	return false
}

func (c *fieldCursor) timeVal() time.Time {
	col, v := c.next()
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return t
	case string:
		return c.parseTime(col, t)
	case []byte:
		return c.parseTime(col, string(t))
	}
	c.fail(col, "timestamp", v)
	return time.Time{}
}

// parseTime covers rows read without declared-type conversion, such as
// values coming back through a CTE.
func (c *fieldCursor) parseTime(col querysql.Column, s string) time.Time {
	for _, layout := range []string{
		TimeLayout,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	c.fail(col, "timestamp", s)
	return time.Time{}
}

func (c *fieldCursor) jsonObject() map[string]any {
	col, v := c.next()
	if v == nil {
		return nil
	}
	text, ok := textValue(v)
	if !ok {
		c.fail(col, "json text", v)
		return nil
	}
	dv, err := decodeJSONText(text)
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("%s.%s: %w", c.kind, col.Name, err)
		}
		return nil
	}
	obj, ok := dv.(map[string]any)
	if !ok {
		c.fail(col, "json object", dv)
		return nil
	}
	return obj
}
