package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/provq/provq/internal/canon"
)

// AssertRowsGolden compares result rows against the golden file
// testdata/golden/<name>.golden. Rows are rendered as canonical JSON,
// one row array per line, so diffs stay readable and key order cannot
// flake the comparison.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Rows must contain only canonicalizable values (scalars, maps,
// slices); entity projections do not belong in golden assertions.
func AssertRowsGolden(t *testing.T, name string, rows [][]any) {
	t.Helper()

	var out []byte
	for _, row := range rows {
		line, err := canon.MarshalCanonical(row)
		if err != nil {
			t.Fatalf("row is not canonicalizable: %v", err)
		}
		out = append(out, line...)
		out = append(out, '\n')
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, out)
}
