package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avantgardnerio/hermitage/internal/annotation"
	"github.com/avantgardnerio/hermitage/internal/session"
)

var (
	// ErrBlockTarget is returned when a blocking or releasing statement does
	// not address exactly one session, or both address the same one.
	ErrBlockTarget = errors.New("blocking statements need exactly one target session")

	// ErrAlreadyBlocked is returned by Block while another blocked statement
	// is outstanding.
	ErrAlreadyBlocked = errors.New("a blocked statement is already outstanding")

	// ErrNotBlocked is returned by Unblock for a handle that is not the
	// harness's outstanding blocked statement.
	ErrNotBlocked = errors.New("no such blocked statement")

	// ErrSessionBusy is returned when a statement targets the session whose
	// blocked statement is still in flight.
	ErrSessionBusy = errors.New("session has a statement in flight")
)

// VerificationError is returned when a read does not match its annotation.
type VerificationError struct {
	Session   int
	Statement string
	Expected  annotation.Expectation
	Actual    map[int64]int64
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Verification failed on T%d\n", e.Session)
	fmt.Fprintf(&buf, "  Expected: %s (%s)\n", e.Expected, e.Expected.Kind)
	fmt.Fprintf(&buf, "  Actual: %s\n", annotation.FormatRows(e.Actual))
	fmt.Fprintf(&buf, "  Statement: %s", e.Statement)
	return buf.String()
}

// OrderingError is returned when a blocked statement was observed to finish
// before the statement meant to release it.
type OrderingError struct {
	Session   int
	Statement string
	Reason    string
}

// Error implements the error interface.
func (e *OrderingError) Error() string {
	return fmt.Sprintf("ordering violated on T%d: %s\n  Statement: %s", e.Session, e.Reason, e.Statement)
}

// AssertionError is returned when a step's outcome differs from what the
// scenario declares, e.g. a statement succeeded that should have failed.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// IsVerification reports whether err is or wraps a *VerificationError.
func IsVerification(err error) bool {
	var v *VerificationError
	return errors.As(err, &v)
}

// IsOrdering reports whether err is or wraps an *OrderingError.
func IsOrdering(err error) bool {
	var o *OrderingError
	return errors.As(err, &o)
}

// IsConfiguration reports whether err comes from a malformed script rather
// than from the backend.
func IsConfiguration(err error) bool {
	return errors.Is(err, annotation.ErrInvalidLabel) ||
		errors.Is(err, annotation.ErrInvalidExpectation) ||
		errors.Is(err, session.ErrSessionOutOfRange) ||
		errors.Is(err, ErrBlockTarget) ||
		errors.Is(err, ErrAlreadyBlocked) ||
		errors.Is(err, ErrNotBlocked) ||
		errors.Is(err, ErrSessionBusy)
}
