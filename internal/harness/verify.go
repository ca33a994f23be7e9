package harness

import (
	"context"
	"strings"

	"github.com/avantgardnerio/hermitage/internal/annotation"
	"github.com/avantgardnerio/hermitage/internal/session"
)

// AssertQuery runs the read in stmt on every routed session and compares
// the id => value rows against the statement's annotation.
//
// Only the text before the first ';' is sent to the backend. A mismatch
// returns a *VerificationError; backend errors are returned unwrapped.
func (h *Harness) AssertQuery(ctx context.Context, stmt string) error {
	ann, err := annotation.Parse(stmt)
	if err != nil {
		return err
	}
	targets, err := h.route(stmt)
	if err != nil {
		return err
	}
	query, _, _ := strings.Cut(stmt, ";")

	for _, s := range targets {
		rows, err := s.Query(ctx, query)
		if err != nil {
			h.record(TraceEvent{Kind: EventQuery, Session: s.Ordinal(), Statement: stmt}, err)
			return err
		}

		actual := session.ToMap(rows)
		ev := TraceEvent{
			Kind:      EventQuery,
			Session:   s.Ordinal(),
			Statement: stmt,
			Rows:      annotation.FormatRows(actual),
		}
		if !ann.Expectation.Matches(actual) {
			verr := &VerificationError{
				Session:   s.Ordinal(),
				Statement: stmt,
				Expected:  ann.Expectation,
				Actual:    actual,
			}
			ev.Outcome = OutcomeMismatch
			ev.Error = "expected " + ann.Expectation.String()
			h.record(ev, verr)
			return verr
		}
		h.record(ev, nil)
	}
	return nil
}
