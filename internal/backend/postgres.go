package backend

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/avantgardnerio/hermitage/internal/conflict"
)

// seedStatements recreate the (id, value) table every scenario starts from.
var seedStatements = []string{
	"drop table if exists test",
	"create table test (id int primary key, value int)",
	"insert into test (id, value) values (1, 10), (2, 20)",
}

func init() {
	Register(&Backend{
		Name:     "postgres",
		Driver:   "pgx",
		BuildDSN: pgDSN(5432, "postgres", "postgres"),
		Setup:    seedStatements,
		Cleanup:  "abort",
		Settle:   500 * time.Millisecond,
		Rules:    conflict.PostgresRules,
	})

	Register(&Backend{
		Name:      "cockroach",
		Driver:    "pgx",
		BuildDSN:  pgDSN(26257, "defaultdb", "root"),
		Setup:     seedStatements,
		Cleanup:   "abort",
		Settle:    time.Second,
		StepDelay: time.Second,
		Rules:     append(append([]conflict.Rule(nil), conflict.CockroachRules...), conflict.PostgresRules...),
	})
}

// pgDSN builds a key=value PostgreSQL connection string.
func pgDSN(defaultPort int, defaultDB, defaultUser string) func(Target) string {
	return func(t Target) string {
		sslmode := "disable"
		if mode, ok := t.Options["sslmode"]; ok {
			sslmode = mode
		}

		dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s user=%s",
			orDefault(t.Host, "localhost"),
			orDefault(t.Port, defaultPort),
			orDefault(t.Database, defaultDB),
			sslmode,
			orDefault(t.User, defaultUser),
		)
		if t.Password != "" {
			dsn += fmt.Sprintf(" password=%s", t.Password)
		}
		return dsn
	}
}
