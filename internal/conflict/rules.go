package conflict

// PostgresRules covers PostgreSQL and wire-compatible servers.
var PostgresRules = []Rule{
	Match(SerializationFailure, `could not serialize access due to concurrent (update|delete)`),
	Match(RWDependency, `could not serialize access due to read/write dependencies`),
	Match(Deadlock, `deadlock detected`),
	Match(LockTimeout, `canceling statement due to lock timeout`),
	Match(ConstraintViolation, `duplicate key value violates unique constraint`),
}

// CockroachRules covers CockroachDB's restart errors.
var CockroachRules = []Rule{
	Match(RefreshFailure, `failed preemptive refresh`),
	Match(RefreshFailure, `RETRY_SERIALIZABLE`),
	Match(WriteConflict, `RETRY_WRITE_TOO_OLD|WriteTooOldError`),
	Match(Deadlock, `ABORT_REASON_ABORTED_RECORD_FOUND|TransactionAbortedError`),
	Match(ConstraintViolation, `duplicate key value violates unique constraint`),
}

// MySQLRules covers InnoDB.
var MySQLRules = []Rule{
	Match(Deadlock, `Deadlock found when trying to get lock`),
	Match(LockTimeout, `Lock wait timeout exceeded`),
	Match(ConstraintViolation, `Duplicate entry`),
}

// DuckDBRules covers DuckDB's optimistic concurrency control.
var DuckDBRules = []Rule{
	Match(WriteConflict, `conflict on (tuple|update)|write-write conflict`),
	Match(ConstraintViolation, `duplicate key`),
}

// SQLiteRules covers SQLite's database-level locking.
var SQLiteRules = []Rule{
	Match(LockTimeout, `database is locked|SQLITE_BUSY`),
	Match(ConstraintViolation, `UNIQUE constraint failed`),
}

// Default returns a classifier over every backend's rules. Backend specific
// rule sets come first so the more precise patterns win.
func Default() *Classifier {
	return Merge(
		New(PostgresRules...),
		New(CockroachRules...),
		New(MySQLRules...),
		New(DuckDBRules...),
		New(SQLiteRules...),
	)
}
