package store

import (
	"fmt"
	"time"

	"github.com/provq/provq/internal/canon"
	"github.com/provq/provq/internal/orm"
)

// marshalJSONObject renders a JSON column value canonically (RFC 8785)
// so stored text is byte-deterministic across imports. Nil and empty
// maps store as {}.
func marshalJSONObject(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := canon.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	return string(data), nil
}

// nullableString stores the empty string as NULL. Node process types
// use it: data nodes carry no process type and filters distinguish
// null from empty.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableID stores a missing foreign key as NULL.
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// utcOrNow normalizes timestamps for storage. SQLite compares the
// stored text form, so mixed zone offsets would break ordering.
func utcOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// timeText renders a timestamp in the one layout the store writes.
// Binding text instead of time.Time pins the stored form; the driver's
// own rendering uses a space separator, which would not compare equal
// to the RFC 3339 text filters produce.
func timeText(t time.Time) string {
	return t.Format(orm.TimeLayout)
}
