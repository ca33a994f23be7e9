// Package backend describes the SQL servers scenarios run against: how to
// reach them, how to seed the two-column test table and which error
// messages mean what.
//
// Backends register themselves from init functions, one file per server.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/avantgardnerio/hermitage/internal/conflict"
	"github.com/avantgardnerio/hermitage/internal/session"
)

// Target holds connection settings for a backend.
type Target struct {
	Type     string            `koanf:"type" json:"type"`
	Host     string            `koanf:"host" json:"host,omitempty"`
	Port     int               `koanf:"port" json:"port,omitempty"`
	Database string            `koanf:"database" json:"database,omitempty"`
	User     string            `koanf:"user" json:"user,omitempty"`
	Password string            `koanf:"password" json:"-"`
	DSN      string            `koanf:"dsn" json:"-"`
	Options  map[string]string `koanf:"options" json:"options,omitempty"`
}

// Backend is a registered SQL server flavour.
type Backend struct {
	// Name is the target.type value selecting this backend.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// BuildDSN renders a Target into a driver DSN. Target.DSN, when set,
	// bypasses it.
	BuildDSN func(Target) string

	// Setup recreates and seeds the test table on session 1.
	Setup []string

	// Cleanup aborts any open transaction on a session. Empty disables it.
	Cleanup string

	// Settle is the default time given to a blocking statement to reach
	// the backend's lock manager.
	Settle time.Duration

	// StepDelay is slept between scenario steps. Some servers need it to
	// damp scheduling races.
	StepDelay time.Duration

	// Rules classify the backend's error messages.
	Rules []conflict.Rule
}

// DSN returns the data source name for t.
func (b *Backend) DSN(t Target) string {
	if t.DSN != "" {
		return t.DSN
	}
	return b.BuildDSN(t)
}

// Classifier returns a classifier over the backend's rules.
func (b *Backend) Classifier() *conflict.Classifier {
	return conflict.New(b.Rules...)
}

// Connect opens the pool and pins n sessions.
// If logger is nil, a discard logger is used.
func Connect(ctx context.Context, b *Backend, t Target, n int, logger *slog.Logger) (*session.Set, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("connecting", slog.String("backend", b.Name), slog.String("host", t.Host), slog.String("database", t.Database))

	db, err := sql.Open(b.Driver, b.DSN(t))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", b.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", b.Name, err)
	}

	set, err := session.Open(ctx, db, n, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return set, nil
}

// orDefault returns v unless it is the zero value.
func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
