package session

import (
	"errors"
	"fmt"

	"github.com/avantgardnerio/hermitage/internal/annotation"
)

// ErrSessionOutOfRange is returned when a label addresses a session the
// harness was not configured with.
var ErrSessionOutOfRange = errors.New("session index out of range")

// Route returns the sessions a label targets, in execution order.
func Route(label annotation.Label, sessions []Session) ([]Session, error) {
	if label.Either {
		if len(sessions) < 2 {
			return nil, fmt.Errorf("%w: either needs 2 sessions, have %d", ErrSessionOutOfRange, len(sessions))
		}
		return []Session{sessions[0], sessions[1]}, nil
	}

	if label.Index < 1 || label.Index > len(sessions) {
		return nil, fmt.Errorf("%w: %s with %d sessions", ErrSessionOutOfRange, label, len(sessions))
	}
	return []Session{sessions[label.Index-1]}, nil
}
