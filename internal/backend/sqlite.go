package backend

import (
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avantgardnerio/hermitage/internal/conflict"
)

func init() {
	Register(&Backend{
		Name:     "sqlite",
		Driver:   "sqlite3",
		BuildDSN: sqliteDSN,
		Setup:    seedStatements,
		Cleanup:  "rollback",
		Settle:   500 * time.Millisecond,
		Rules:    conflict.SQLiteRules,
	})
}

// sqliteDSN opens a file database in WAL mode. Writers wait on each other
// through busy_timeout, which is what makes lock waits observable.
func sqliteDSN(t Target) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	for k, v := range t.Options {
		q.Set(k, v)
	}
	return fmt.Sprintf("file:%s?%s", orDefault(t.Database, "hermitage.db"), q.Encode())
}
