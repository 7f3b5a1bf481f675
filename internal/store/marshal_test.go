package store

import (
	"testing"
	"time"
)

func TestMarshalJSONObject_Empty(t *testing.T) {
	for _, m := range []map[string]any{nil, {}} {
		got, err := marshalJSONObject(m)
		if err != nil {
			t.Fatalf("marshalJSONObject() failed: %v", err)
		}
		if got != "{}" {
			t.Errorf("marshalJSONObject() = %q, want %q", got, "{}")
		}
	}
}

func TestMarshalJSONObject_Canonical(t *testing.T) {
	got, err := marshalJSONObject(map[string]any{
		"zeta":  1,
		"alpha": []any{true, nil},
		"mid":   map[string]any{"b": 2, "a": 1},
	})
	if err != nil {
		t.Fatalf("marshalJSONObject() failed: %v", err)
	}
	want := `{"alpha":[true,null],"mid":{"a":1,"b":2},"zeta":1}`
	if got != want {
		t.Errorf("marshalJSONObject() = %q, want %q", got, want)
	}
}

func TestMarshalJSONObject_RejectsUnsupportedValues(t *testing.T) {
	_, err := marshalJSONObject(map[string]any{"ch": make(chan int)})
	if err == nil {
		t.Error("expected error for unsupported value type, got nil")
	}
}

func TestNullableHelpers(t *testing.T) {
	if nullableString("") != nil {
		t.Error("empty string should store as NULL")
	}
	if nullableString("x") != "x" {
		t.Error("non-empty string should pass through")
	}
	if nullableID(nil) != nil {
		t.Error("nil id should store as NULL")
	}
	id := int64(7)
	if nullableID(&id) != int64(7) {
		t.Error("id pointer should dereference")
	}
}

func TestUTCOrNow(t *testing.T) {
	if utcOrNow(time.Time{}).IsZero() {
		t.Error("zero time should default to now")
	}

	est := time.FixedZone("EST", -5*3600)
	in := time.Date(2025, 3, 1, 7, 0, 0, 0, est)
	out := utcOrNow(in)
	if out.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", out.Location())
	}
	if !out.Equal(in) {
		t.Error("normalization changed the instant")
	}
}
