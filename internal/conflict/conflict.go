// Package conflict classifies backend errors by message text.
//
// No structured error taxonomy exists across the supported backends, so the
// only classification signal is the error message. Each backend supplies an
// ordered list of rules; the first rule whose pattern matches wins.
package conflict

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the class of a backend error.
type Kind string

const (
	// Unknown is returned for nil errors and for messages no rule matches.
	Unknown Kind = "unknown"

	// SerializationFailure is a write-write conflict detected at statement
	// time ("could not serialize access due to concurrent update").
	SerializationFailure Kind = "serialization_failure"

	// RWDependency is a serializable-snapshot abort on a read/write
	// dependency cycle.
	RWDependency Kind = "rw_dependency"

	// RefreshFailure is CockroachDB's retryable read refresh error.
	RefreshFailure Kind = "refresh_failure"

	// Deadlock is a lock cycle broken by the backend.
	Deadlock Kind = "deadlock"

	// LockTimeout is a lock wait that exceeded the backend's limit.
	LockTimeout Kind = "lock_timeout"

	// WriteConflict is an optimistic conflict reported without waiting.
	WriteConflict Kind = "write_conflict"

	// ConstraintViolation is a unique or primary key violation.
	ConstraintViolation Kind = "constraint_violation"
)

// Kinds lists every classifiable kind, Unknown excluded.
var Kinds = []Kind{
	SerializationFailure,
	RWDependency,
	RefreshFailure,
	Deadlock,
	LockTimeout,
	WriteConflict,
	ConstraintViolation,
}

// ParseKind validates a kind name as written in scenario files.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == Unknown {
		return k, nil
	}
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return Unknown, fmt.Errorf("unknown error kind %q", s)
}

// Rule maps a message pattern to a kind.
type Rule struct {
	Kind    Kind
	Pattern *regexp.Regexp
}

// Match builds a case-insensitive rule from a regular expression.
func Match(kind Kind, expr string) Rule {
	return Rule{Kind: kind, Pattern: regexp.MustCompile(`(?i)` + expr)}
}

// Classifier applies rules in order.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over the given rules.
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the classifier's rules.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the kind of err. A nil classifier or nil error is
// Unknown.
func (c *Classifier) Classify(err error) Kind {
	if c == nil || err == nil {
		return Unknown
	}
	msg := err.Error()
	for _, r := range c.rules {
		if r.Pattern.MatchString(msg) {
			return r.Kind
		}
	}
	return Unknown
}

// Is reports whether err classifies as kind.
func (c *Classifier) Is(err error, kind Kind) bool {
	return c.Classify(err) == kind
}

// Merge concatenates classifiers, earlier rules take precedence.
func Merge(classifiers ...*Classifier) *Classifier {
	var rules []Rule
	for _, c := range classifiers {
		if c != nil {
			rules = append(rules, c.rules...)
		}
	}
	return New(rules...)
}
