package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avantgardnerio/hermitage/internal/annotation"
	"github.com/avantgardnerio/hermitage/internal/conflict"
	"github.com/avantgardnerio/hermitage/internal/session"
)

// DefaultSettle is how long Unblock waits for a blocked statement to reach
// the backend's lock manager.
const DefaultSettle = 500 * time.Millisecond

// Harness drives annotated statements over a fixed set of sessions.
//
// A Harness is used by one scenario at a time. Only the background unit of
// an outstanding Block runs concurrently with the caller.
type Harness struct {
	sessions   []session.Session
	classifier *conflict.Classifier
	settle     time.Duration
	stepDelay  time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	seq     int64
	trace   []TraceEvent
	blocked *Blocked
}

// Option configures a Harness.
type Option func(*Harness)

// WithClassifier sets the classifier used for expected backend errors.
// Defaults to conflict.Default().
func WithClassifier(c *conflict.Classifier) Option {
	return func(h *Harness) {
		if c != nil {
			h.classifier = c
		}
	}
}

// WithSettle sets the default wait before a blocked statement is released.
func WithSettle(d time.Duration) Option {
	return func(h *Harness) {
		if d > 0 {
			h.settle = d
		}
	}
}

// WithStepDelay sets a pause between scenario steps.
func WithStepDelay(d time.Duration) Option {
	return func(h *Harness) {
		h.stepDelay = d
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a harness over sessions. sessions[0] is T1.
func New(sessions []session.Session, opts ...Option) (*Harness, error) {
	if len(sessions) < 2 {
		return nil, fmt.Errorf("need at least 2 sessions, got %d", len(sessions))
	}
	h := &Harness{
		sessions:   sessions,
		classifier: conflict.Default(),
		settle:     DefaultSettle,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Sessions returns the sessions the harness routes to.
func (h *Harness) Sessions() []session.Session {
	return h.sessions
}

// Classify returns the kind of a backend error.
func (h *Harness) Classify(err error) conflict.Kind {
	return h.classifier.Classify(err)
}

// Execute runs stmt on every session its label routes to, in order.
// The first backend error is returned unwrapped.
func (h *Harness) Execute(ctx context.Context, stmt string) error {
	targets, err := h.route(stmt)
	if err != nil {
		return err
	}
	for _, s := range targets {
		_, err := s.Exec(ctx, stmt)
		h.record(TraceEvent{Kind: EventExec, Session: s.Ordinal(), Statement: stmt}, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// Trace returns a copy of the events recorded so far.
func (h *Harness) Trace() []TraceEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TraceEvent, len(h.trace))
	copy(out, h.trace)
	return out
}

// route resolves the sessions stmt addresses and rejects the session that
// has a blocked statement in flight.
func (h *Harness) route(stmt string) ([]session.Session, error) {
	label, err := annotation.ParseLabel(stmt)
	if err != nil {
		return nil, err
	}
	targets, err := session.Route(label, h.sessions)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	b := h.blocked
	h.mu.Unlock()
	if b != nil {
		for _, s := range targets {
			if s == b.session {
				return nil, fmt.Errorf("%w: T%d", ErrSessionBusy, s.Ordinal())
			}
		}
	}
	return targets, nil
}

// record appends ev to the trace, deriving the outcome from err when the
// caller left it empty.
func (h *Harness) record(ev TraceEvent, err error) {
	if err != nil && ev.Error == "" {
		ev.Error = err.Error()
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeOK
		if err != nil {
			ev.Outcome = OutcomeError
		}
	}

	h.mu.Lock()
	h.seq++
	ev.Seq = h.seq
	h.trace = append(h.trace, ev)
	h.mu.Unlock()

	attrs := []any{
		slog.Int64("seq", ev.Seq),
		slog.String("kind", ev.Kind),
		slog.Int("session", ev.Session),
		slog.String("outcome", ev.Outcome),
	}
	if ev.Error != "" {
		attrs = append(attrs, slog.String("error", ev.Error))
	}
	h.logger.Debug("statement", attrs...)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
