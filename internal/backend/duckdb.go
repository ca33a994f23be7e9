package backend

import (
	"time"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/avantgardnerio/hermitage/internal/conflict"
)

func init() {
	// DuckDB never waits on locks; conflicting writers fail immediately.
	Register(&Backend{
		Name:     "duckdb",
		Driver:   "duckdb",
		BuildDSN: func(t Target) string { return t.Database },
		Setup:    seedStatements,
		Cleanup:  "rollback",
		Settle:   500 * time.Millisecond,
		Rules:    conflict.DuckDBRules,
	})
}
