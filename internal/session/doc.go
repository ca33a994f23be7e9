// Package session wraps the long-lived backend connections a scenario drives.
//
// A Session is one pinned connection owning at most one open transaction.
// Transaction control (begin, commit, abort) is just another statement sent
// through Exec, so the session carries no transaction state of its own.
// Sessions are not safe for concurrent statements; the harness guarantees at
// most one in-flight statement per session.
package session
