package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avantgardnerio/hermitage/internal/session"
)

// Fixture prepares the backend around a scenario.
type Fixture interface {
	// Setup recreates and seeds the test table.
	Setup(ctx context.Context, sessions []session.Session) error

	// Reset aborts any transaction open on s.
	Reset(ctx context.Context, s session.Session) error
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Check every label against the session count
//  2. Run fixture setup
//  3. Execute steps in order, stopping at the first failure
//  4. Reset every session, joining any statement still blocked
//
// Scenario failures are reported in Result.Errors. The returned error is
// reserved for problems that prevent the scenario from running at all.
func Run(ctx context.Context, sessions []session.Session, fixture Fixture, sc *Scenario, opts ...Option) (*Result, error) {
	if err := sc.Validate(len(sessions)); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	h, err := New(sessions, opts...)
	if err != nil {
		return nil, err
	}
	logger := h.logger.With(slog.String("scenario", sc.Name))

	if err := fixture.Setup(ctx, sessions); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult(sc.Name)
	r := &runner{h: h}
	defer h.abandon(func(s session.Session) {
		if err := fixture.Reset(context.WithoutCancel(ctx), s); err != nil {
			logger.Warn("reset failed", slog.Int("session", s.Ordinal()), slog.String("error", err.Error()))
		}
	})

	stepDelay := h.stepDelay
	if sc.StepDelay > 0 {
		stepDelay = sc.StepDelay
	}

	for i, step := range sc.Steps {
		if i > 0 {
			if err := sleep(ctx, stepDelay); err != nil {
				result.AddError(fmt.Sprintf("step %d: %v", i+1, err))
				break
			}
		}
		if err := r.step(ctx, step); err != nil {
			logger.Info("scenario step failed",
				slog.Int("step", i+1),
				slog.String("kind", step.Kind()),
				slog.String("error", err.Error()),
			)
			result.AddError(fmt.Sprintf("step %d (%s): %v", i+1, step.Kind(), err))
			break
		}
	}

	result.Trace = h.Trace()
	logger.Info("scenario completed", slog.Bool("pass", result.Pass), slog.Int("events", len(result.Trace)))
	return result, nil
}

type runner struct {
	h       *Harness
	pending *Blocked
}

func (r *runner) step(ctx context.Context, step Step) error {
	switch step.Kind() {
	case StepExec:
		return r.h.checkError(step.ExpectError, r.h.Execute(ctx, step.Exec))

	case StepQuery:
		err := r.h.AssertQuery(ctx, step.Query)
		if IsVerification(err) {
			return err
		}
		return r.h.checkError(step.ExpectError, err)

	case StepBlock:
		b, err := r.h.Block(ctx, step.Block)
		if err != nil {
			return err
		}
		r.pending = b
		return nil

	case StepUnblock:
		settle := r.h.settle
		if step.Settle > 0 {
			settle = step.Settle
		}
		b := r.pending
		r.pending = nil
		err := r.h.UnblockAfter(ctx, b, step.Unblock, settle)
		if IsOrdering(err) {
			return err
		}
		if err := r.h.checkError(step.ExpectError, err); err != nil {
			return err
		}
		if err := r.h.checkError(step.BlockedError, b.Err()); err != nil {
			return fmt.Errorf("released statement on T%d: %w", b.Session(), err)
		}
		return nil

	case StepPause:
		r.h.record(TraceEvent{Kind: EventPause, Statement: step.Pause.String()}, nil)
		return sleep(ctx, step.Pause)

	default:
		return fmt.Errorf("empty step")
	}
}

// checkError compares a statement's outcome with the declared expectation.
// Configuration errors and context cancellation are never expected.
func (h *Harness) checkError(exp *ErrorExpectation, err error) error {
	if err != nil && (IsConfiguration(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}

	switch {
	case exp == nil && err == nil:
		return nil
	case exp == nil:
		return fmt.Errorf("unexpected backend error: %w", err)
	case err == nil:
		return &AssertionError{Type: "expect_error", Expected: exp.String(), Actual: "statement succeeded"}
	}

	if exp.Kind != "" {
		if got := h.Classify(err); got != exp.Kind {
			return &AssertionError{
				Type:     "expect_error",
				Expected: exp.String(),
				Actual:   fmt.Sprintf("%s error: %v", got, err),
			}
		}
	}
	if exp.Contains != "" && !strings.Contains(err.Error(), exp.Contains) {
		return &AssertionError{
			Type:     "expect_error",
			Expected: exp.String(),
			Actual:   err.Error(),
		}
	}
	return nil
}
