package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avantgardnerio/hermitage/internal/harness"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Scenario   string
	Backend    string
	FailedOnly bool
	Limit      int
}

// ListRuns returns recorded runs, newest first.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Scenario != "" {
		where = append(where, "scenario = ?")
		args = append(args, f.Scenario)
	}
	if f.Backend != "" {
		where = append(where, "backend = ?")
		args = append(args, f.Backend)
	}
	if f.FailedOnly {
		where = append(where, "pass = 0")
	}

	query := `
		SELECT id, scenario, backend, anomaly, pass, errors, recorded_at, duration_ms
		FROM runs`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY recorded_at DESC, id DESC"
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, backend, anomaly, pass, errors, recorded_at, duration_ms
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ReadTrace returns a run's trace in seq order.
//
// Returns an empty slice (not nil) for a run without events.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]harness.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, session, statement, outcome, error, result_rows
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []harness.TraceEvent{}
	for rows.Next() {
		var ev harness.TraceEvent
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Session, &ev.Statement, &ev.Outcome, &ev.Error, &ev.Rows); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadResult rebuilds the harness result of a recorded run.
func (s *Store) ReadResult(ctx context.Context, id string) (*harness.Result, error) {
	run, err := s.ReadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	trace, err := s.ReadTrace(ctx, id)
	if err != nil {
		return nil, err
	}
	return &harness.Result{
		Scenario: run.Scenario,
		Pass:     run.Pass,
		Trace:    trace,
		Errors:   run.Errors,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		errorsJSON string
		recordedAt string
		durationMS int64
	)
	if err := row.Scan(&run.ID, &run.Scenario, &run.Backend, &run.Anomaly, &run.Pass, &errorsJSON, &recordedAt, &durationMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return Run{}, fmt.Errorf("unmarshal errors of run %s: %w", run.ID, err)
	}
	ts, err := time.Parse(timeFormat, recordedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse recorded_at of run %s: %w", run.ID, err)
	}
	run.RecordedAt = ts
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
