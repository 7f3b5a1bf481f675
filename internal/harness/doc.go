// Package harness runs end-to-end query scenarios for tests.
//
// A scenario is a YAML document pairing a graph fixture with a list of
// query steps; each step holds a query description (inline or loaded
// from a stored definition file) and expectations on the result rows.
// Scenarios execute against a fresh SQLite database per run, so they
// are order-independent and parallel-safe.
//
// Expected rows are compared through canonical JSON, which makes the
// comparison independent of Go's int64/float64 scan types versus the
// int/float values YAML produces. Golden-file assertions cover the
// cases where spelling out rows inline would drown the scenario.
package harness
