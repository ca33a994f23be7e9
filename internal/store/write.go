package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avantgardnerio/hermitage/internal/harness"
)

// timeFormat is fixed width so recorded_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded scenario execution.
type Run struct {
	ID         string        `json:"id"`
	Scenario   string        `json:"scenario"`
	Backend    string        `json:"backend"`
	Anomaly    string        `json:"anomaly,omitempty"`
	Pass       bool          `json:"pass"`
	Errors     []string      `json:"errors,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
	Duration   time.Duration `json:"duration"`
}

// WriteRun stores a run and its trace in one transaction.
// ID and RecordedAt are assigned when empty; the stored run is returned.
func (s *Store) WriteRun(ctx context.Context, run Run, trace []harness.TraceEvent) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	if run.RecordedAt.IsZero() {
		run.RecordedAt = s.clock.Now()
	}
	run.RecordedAt = run.RecordedAt.UTC()
	if run.Errors == nil {
		run.Errors = []string{}
	}

	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return Run{}, fmt.Errorf("write run: marshal errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, backend, anomaly, pass, errors, recorded_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.Backend,
		run.Anomaly,
		run.Pass,
		string(errorsJSON),
		run.RecordedAt.Format(timeFormat),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(run_id, seq, kind, session, statement, outcome, error, result_rows)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("write events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range trace {
		if _, err := stmt.ExecContext(ctx,
			run.ID, ev.Seq, ev.Kind, ev.Session, ev.Statement, ev.Outcome, ev.Error, ev.Rows,
		); err != nil {
			return Run{}, fmt.Errorf("write event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	run.Duration = run.Duration.Truncate(time.Millisecond)
	return run, nil
}
