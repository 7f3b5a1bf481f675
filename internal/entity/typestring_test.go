package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNodeTypeString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"base node", "node.Node.", false},
		{"data subtype", "data.core.int.Int.", false},
		{"single segment", "data.", false},
		{"empty", "", true},
		{"no trailing dot", "data.core.int.Int", true},
		{"empty segment", "data..Int.", true},
		{"plain word", "comment", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeTypeString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQueryTypePrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty matches everything", "", ""},
		{"base node matches everything", "node.Node.", ""},
		{"data subtype", "data.core.int.Int.", "data.core.int."},
		{"data base", "data.Data.", "data."},
		{"process subtype", "process.calculation.calcjob.CalcJobNode.", "process.calculation.calcjob."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QueryTypePrefix(tt.input))
		})
	}
}

func TestProcessQueryString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"entry point", "provq.calculations:arithmetic.add", "provq.calculations:arithmetic.add."},
		{"dotted path", "some.module.Cls", "some.module."},
		{"single word", "bare", "bare."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProcessQueryString(tt.input))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "data.core.int.", "data.core.int."},
		{"percent", "100%", `100\%`},
		{"underscore", "a_b", `a\_b`},
		{"backslash first", `a\%b`, `a\\\%b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeLike(tt.input))
		})
	}
}

func TestBaseTagSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"node subtype", "data.core.int.Int.", "Int"},
		{"group classifier", "group.core", "core"},
		{"fixed name", "computer", "computer"},
		{"empty", "", "node"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BaseTagSegment(tt.input))
		})
	}
}

func TestClosureLinkKindsAreDataFlowOnly(t *testing.T) {
	require.Len(t, ClosureLinkKinds, 2)
	assert.Contains(t, ClosureLinkKinds, LinkCreate)
	assert.Contains(t, ClosureLinkKinds, LinkInputCalc)
	assert.NotContains(t, ClosureLinkKinds, LinkReturn)
	assert.NotContains(t, ClosureLinkKinds, LinkCallWork)
}
