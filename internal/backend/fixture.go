package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avantgardnerio/hermitage/internal/session"
)

// Fixture seeds the test table before a scenario and aborts leftover
// transactions after it.
type Fixture struct {
	backend *Backend
	logger  *slog.Logger
}

// NewFixture returns the fixture for b.
// If logger is nil, a discard logger is used.
func NewFixture(b *Backend, logger *slog.Logger) *Fixture {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fixture{backend: b, logger: logger}
}

// Setup runs the backend's setup statements on session 1.
func (f *Fixture) Setup(ctx context.Context, sessions []session.Session) error {
	if len(sessions) == 0 {
		return fmt.Errorf("fixture setup: no sessions")
	}
	for _, stmt := range f.backend.Setup {
		if _, err := sessions[0].Exec(ctx, stmt); err != nil {
			return fmt.Errorf("fixture setup %q: %w", stmt, err)
		}
	}
	return nil
}

// Reset aborts any open transaction on s. Failures are expected when no
// transaction is open and are only logged.
func (f *Fixture) Reset(ctx context.Context, s session.Session) error {
	if f.backend.Cleanup == "" {
		return nil
	}
	if _, err := s.Exec(ctx, f.backend.Cleanup); err != nil {
		f.logger.Debug("fixture reset failed",
			slog.Int("session", s.Ordinal()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
