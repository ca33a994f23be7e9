package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/avantgardnerio/hermitage/internal/session"
)

// RenderTrace renders a result as stable text: one line per event, with
// rows and errors indented underneath.
func RenderTrace(result *Result) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", result.Scenario)
	fmt.Fprintf(&buf, "pass: %t\n", result.Pass)
	for _, ev := range result.Trace {
		who := "-"
		if ev.Session > 0 {
			who = fmt.Sprintf("T%d", ev.Session)
		}
		fmt.Fprintf(&buf, "[%d] %s %s %s: %s\n", ev.Seq, ev.Kind, who, ev.Outcome, ev.Statement)
		if ev.Rows != "" {
			fmt.Fprintf(&buf, "    rows: %s\n", ev.Rows)
		}
		if ev.Error != "" {
			fmt.Fprintf(&buf, "    error: %s\n", ev.Error)
		}
	}
	for _, e := range result.Errors {
		fmt.Fprintf(&buf, "failure: %s\n", strings.ReplaceAll(e, "\n", "\n    "))
	}
	return buf.String()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sessions []session.Session, fixture Fixture, sc *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), sessions, fixture, sc, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, sc.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(RenderTrace(result)))
}
