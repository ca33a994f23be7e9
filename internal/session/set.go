package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// Set owns the pool and the n sessions pinned from it for the lifetime of
// a harness.
type Set struct {
	db       *sql.DB
	sessions []Session
}

// Open pins n connections from db. The pool is closed together with the set.
func Open(ctx context.Context, db *sql.DB, n int, logger *slog.Logger) (*Set, error) {
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 sessions, got %d", n)
	}

	// Every session holds its connection for the whole run.
	db.SetMaxOpenConns(n + 1)
	db.SetMaxIdleConns(n + 1)

	s := &Set{db: db, sessions: make([]Session, 0, n)}
	for i := 1; i <= n; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("pin session %d: %w", i, err)
		}
		s.sessions = append(s.sessions, NewConn(i, conn, logger))
	}
	return s, nil
}

// Sessions returns the pinned sessions, index 0 is T1.
func (s *Set) Sessions() []Session {
	return s.sessions
}

// Close releases every session and the pool.
func (s *Set) Close() error {
	var errs []error
	for _, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %d: %w", sess.Ordinal(), err))
		}
	}
	s.sessions = nil
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
