package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/provq/provq/internal/builder"
	"github.com/provq/provq/internal/canon"
	"github.com/provq/provq/internal/fixture"
	"github.com/provq/provq/internal/querydef"
	"github.com/provq/provq/internal/store"
)

// Scenario pairs a graph fixture with query steps to run against it.
type Scenario struct {
	// Name identifies the scenario; golden files derive from it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Fixture selects the graph: "demo" for the built-in demo graph,
	// anything else is a YAML graph document path relative to the
	// scenario file.
	Fixture string `yaml:"fixture"`

	// Steps run in order against one shared database.
	Steps []Step `yaml:"steps"`
}

// Step executes one query and checks its result.
type Step struct {
	// Name labels the subtest.
	Name string `yaml:"name"`

	// Query is an inline query description in wire form. Exactly one
	// of Query and Def must be set.
	Query map[string]any `yaml:"query,omitempty"`

	// Def is a stored definition file path relative to the scenario
	// file.
	Def string `yaml:"def,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect holds a step's assertions. All set fields are checked.
type Expect struct {
	// Count asserts the Count() result.
	Count *int64 `yaml:"count,omitempty"`

	// Rows asserts the full result of All(), compared through
	// canonical JSON. Only scalar projections are comparable.
	Rows *[][]any `yaml:"rows,omitempty"`

	// Golden compares All() against testdata/golden/<value>.golden.
	Golden string `yaml:"golden,omitempty"`

	// Error asserts that building or executing fails and the error
	// contains the substring.
	Error string `yaml:"error,omitempty"`
}

// RunFile loads and runs a scenario from a YAML file. Each step
// becomes a subtest.
func RunFile(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scenario: %v", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		t.Fatalf("parse scenario %s: %v", path, err)
	}
	if sc.Name == "" {
		t.Fatalf("scenario %s has no name", path)
	}
	Run(t, &sc, filepath.Dir(path))
}

// Run executes a scenario. baseDir anchors relative fixture and
// definition paths.
func Run(t *testing.T, sc *Scenario, baseDir string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "scenario.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := loadFixture(ctx, st, sc.Fixture, baseDir); err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}

	for i, step := range sc.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step_%d", i+1)
		}
		t.Run(name, func(t *testing.T) {
			runStep(t, ctx, st, step, baseDir)
		})
	}
}

func loadFixture(ctx context.Context, st *store.Store, name, baseDir string) error {
	if name == "" || name == "demo" {
		_, err := fixture.SeedDemo(ctx, st)
		return err
	}
	data, err := os.ReadFile(filepath.Join(baseDir, name))
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	if _, err := fixture.Load(ctx, st, data); err != nil {
		return fmt.Errorf("load fixture %s: %w", name, err)
	}
	return nil
}

func runStep(t *testing.T, ctx context.Context, st *store.Store, step Step, baseDir string) {
	t.Helper()

	b, err := stepBuilder(st, step, baseDir)
	if err == nil && step.Expect.Count != nil {
		var n int64
		n, err = b.Count(ctx)
		if err == nil && n != *step.Expect.Count {
			t.Errorf("count = %d, want %d", n, *step.Expect.Count)
		}
	}

	var rows [][]any
	needRows := step.Expect.Rows != nil || step.Expect.Golden != ""
	if err == nil && (needRows || step.Expect.Error != "") {
		rows, err = b.All(ctx)
	}

	if step.Expect.Error != "" {
		if err == nil {
			t.Fatalf("expected an error containing %q, got none", step.Expect.Error)
		}
		if !bytes.Contains([]byte(err.Error()), []byte(step.Expect.Error)) {
			t.Fatalf("error %q does not contain %q", err, step.Expect.Error)
		}
		return
	}
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}

	if step.Expect.Rows != nil {
		assertRowsEqual(t, *step.Expect.Rows, rows)
	}
	if step.Expect.Golden != "" {
		AssertRowsGolden(t, step.Expect.Golden, rows)
	}
}

func stepBuilder(st *store.Store, step Step, baseDir string) (*builder.Builder, error) {
	switch {
	case step.Query != nil && step.Def != "":
		return nil, fmt.Errorf("step sets both query and def")
	case step.Query != nil:
		return builder.FromQueryDict(st, step.Query)
	case step.Def != "":
		def, err := querydef.Load(filepath.Join(baseDir, step.Def))
		if err != nil {
			return nil, err
		}
		return def.Build(st)
	default:
		return nil, fmt.Errorf("step sets neither query nor def")
	}
}

// assertRowsEqual compares expected and actual rows through canonical
// JSON, neutralizing scan-type differences (int vs int64) between the
// YAML expectation and the database result.
func assertRowsEqual(t *testing.T, want, got [][]any) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("got %d row(s), want %d", len(got), len(want))
	}
	for i := range want {
		w, err := canon.MarshalCanonical(want[i])
		if err != nil {
			t.Fatalf("expected row %d is not canonicalizable: %v", i, err)
		}
		g, err := canon.MarshalCanonical(got[i])
		if err != nil {
			t.Fatalf("result row %d is not canonicalizable: %v", i, err)
		}
		if !bytes.Equal(w, g) {
			t.Errorf("row %d:\n  got  %s\n  want %s", i, g, w)
		}
	}
}
