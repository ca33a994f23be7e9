package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avantgardnerio/hermitage/internal/session"
)

// Blocked is a statement running in the background while it waits on a
// lock held by another session.
type Blocked struct {
	session session.Session
	stmt    string

	ready chan struct{} // closed just before the statement is issued
	done  chan struct{} // closed once the statement returned
	state atomic.Int32  // blockWaiting until release or finish wins
	group errgroup.Group

	err error // backend error of the statement, valid after done
}

// Blocked states. Both the releasing side and the background unit leave
// blockWaiting with a compare-and-swap, so exactly one of them wins.
const (
	blockWaiting int32 = iota
	blockReleased
	blockFinished
)

// release marks b as released. It fails if b already finished or was
// released before.
func (b *Blocked) release() bool {
	return b.state.CompareAndSwap(blockWaiting, blockReleased)
}

// finish marks b's statement as returned. It fails if b was released first.
func (b *Blocked) finish() bool {
	return b.state.CompareAndSwap(blockWaiting, blockFinished)
}

// Session returns the ordinal of the blocked session.
func (b *Blocked) Session() int {
	return b.session.Ordinal()
}

// Statement returns the blocked statement.
func (b *Blocked) Statement() string {
	return b.stmt
}

// Err returns the blocked statement's backend error. It is only meaningful
// after Unblock returned.
func (b *Blocked) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Block starts stmt in the background. The statement is expected to wait in
// the backend until another session commits or aborts; see Unblock.
func (h *Harness) Block(ctx context.Context, stmt string) (*Blocked, error) {
	targets, err := h.route(stmt)
	if err != nil {
		return nil, err
	}
	if len(targets) != 1 {
		return nil, fmt.Errorf("%w: %q", ErrBlockTarget, stmt)
	}

	h.mu.Lock()
	if h.blocked != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: T%d", ErrAlreadyBlocked, h.blocked.Session())
	}
	b := &Blocked{
		session: targets[0],
		stmt:    stmt,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	h.blocked = b
	h.mu.Unlock()

	h.record(TraceEvent{
		Kind:      EventBlock,
		Session:   b.Session(),
		Statement: stmt,
		Outcome:   OutcomeWaiting,
	}, nil)

	b.group.Go(func() error {
		close(b.ready)
		_, err := b.session.Exec(ctx, stmt)
		b.err = err
		finishedFirst := b.finish()
		close(b.done)

		if finishedFirst {
			return &OrderingError{
				Session:   b.Session(),
				Statement: stmt,
				Reason:    "blocked statement returned before it was released",
			}
		}
		return nil
	})
	return b, nil
}

// Unblock releases b with stmt after the harness's settle interval.
func (h *Harness) Unblock(ctx context.Context, b *Blocked, stmt string) error {
	return h.UnblockAfter(ctx, b, stmt, h.settle)
}

// UnblockAfter gives b settle time to reach its blocked state, checks it is
// still waiting, runs the releasing stmt and joins b.
//
// An *OrderingError is returned if b finished before stmt ran. Otherwise
// stmt's own backend error, if any, is returned unwrapped. The blocked
// statement's outcome is available from b.Err.
func (h *Harness) UnblockAfter(ctx context.Context, b *Blocked, stmt string, settle time.Duration) error {
	h.mu.Lock()
	if b == nil || h.blocked != b {
		h.mu.Unlock()
		return ErrNotBlocked
	}
	h.mu.Unlock()

	targets, err := h.route(stmt)
	if errors.Is(err, ErrSessionBusy) {
		return fmt.Errorf("%w: T%d cannot release itself", ErrBlockTarget, b.Session())
	}
	if err != nil {
		return err
	}
	if len(targets) != 1 {
		return fmt.Errorf("%w: release %q", ErrBlockTarget, stmt)
	}
	target := targets[0]

	// From here on b is always joined.
	defer h.clearBlocked(b)

	select {
	case <-b.ready:
	case <-ctx.Done():
		return h.join(b, ctx.Err())
	}
	if err := sleep(ctx, settle); err != nil {
		return h.join(b, err)
	}

	if !b.release() {
		// The background unit finished first and reports the ordering error.
		return h.join(b, nil)
	}

	_, execErr := target.Exec(ctx, stmt)
	h.record(TraceEvent{Kind: EventUnblock, Session: target.Ordinal(), Statement: stmt}, execErr)

	if err := h.join(b, nil); err != nil {
		return err
	}
	return execErr
}

// join waits for b's background unit, records its outcome and returns the
// first of the ordering failure captured inside it and cause.
func (h *Harness) join(b *Blocked, cause error) error {
	waitErr := b.group.Wait()
	h.record(TraceEvent{Kind: EventReleased, Session: b.Session(), Statement: b.stmt}, b.err)

	if waitErr != nil {
		h.logger.Debug("blocked statement out of order",
			slog.Int("session", b.Session()),
			slog.String("error", waitErr.Error()),
		)
		return waitErr
	}
	return cause
}

// abandon joins an outstanding blocked statement without releasing it
// through a script statement. reset is called on every other session first
// so the locks the statement waits on are dropped.
func (h *Harness) abandon(reset func(session.Session)) {
	h.mu.Lock()
	b := h.blocked
	h.blocked = nil
	h.mu.Unlock()

	for _, s := range h.sessions {
		if b == nil || s != b.session {
			reset(s)
		}
	}
	if b == nil {
		return
	}
	b.release()
	_ = b.group.Wait()
	reset(b.session)
}

func (h *Harness) clearBlocked(b *Blocked) {
	h.mu.Lock()
	if h.blocked == b {
		h.blocked = nil
	}
	h.mu.Unlock()
}
