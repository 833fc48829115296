// Package retry runs a per-item operation under a fixed-count, fixed-delay
// retry state machine. Failures never escape: the caller receives an Outcome.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// State is a position in the per-item state machine.
type State int

// States. Attempting is re-entered once per attempt; the others are terminal.
const (
	Attempting State = iota
	Succeeded
	Skipped
	Exhausted
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Policy holds the run-level retry constants.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Result is what one attempt of the wrapped operation reports.
type Result[T any] struct {
	value T
	skip  bool
	err   error
}

// Success reports a produced value.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Skip reports that the item needs no work. Skips are terminal and silent.
func Skip[T any]() Result[T] {
	return Result[T]{skip: true}
}

// Failure reports a failed attempt.
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("attempt failed without error")
	}
	return Result[T]{err: err}
}

// Outcome is the terminal state of one item.
type Outcome[T any] struct {
	State    State
	Value    T
	Attempts int
	Err      error
}

// Observer is notified of every state entry. attempt is the current attempt
// number; err is set on Exhausted and on the Attempting re-entry after a failure.
type Observer func(state State, attempt int, err error)

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Controller executes operations under a Policy.
type Controller struct {
	policy   Policy
	logger   *zap.Logger
	sleep    Sleeper
	observer Observer
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSleeper replaces the wall-clock wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithObserver registers a state observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// New builds a Controller. MaxAttempts below one is treated as one.
func New(policy Policy, logger *zap.Logger, opts ...Option) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Run drives op through the state machine. fields are attached to every log line.
func Run[T any](
	ctx context.Context,
	c *Controller,
	op func(ctx context.Context, attempt int) Result[T],
	fields ...zap.Field,
) Outcome[T] {
	fields = fields[:len(fields):len(fields)]
	var lastErr error
	for attempt := 1; ; attempt++ {
		c.notify(Attempting, attempt, lastErr)

		res := op(ctx, attempt)
		if res.err == nil {
			if res.skip {
				c.notify(Skipped, attempt, nil)
				return Outcome[T]{State: Skipped, Attempts: attempt}
			}
			c.notify(Succeeded, attempt, nil)
			return Outcome[T]{State: Succeeded, Value: res.value, Attempts: attempt}
		}

		lastErr = res.err
		c.logger.Warn("listing attempt failed", append(fields,
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.String("kind", string(jobs.KindOf(res.err))),
			zap.Error(res.err),
		)...)

		if attempt >= c.policy.MaxAttempts {
			return exhaust[T](c, attempt, lastErr, fields)
		}
		c.logger.Info("retrying listing", append(fields, zap.Duration("delay", c.policy.Delay))...)
		if err := c.sleep(ctx, c.policy.Delay); err != nil {
			return exhaust[T](c, attempt, fmt.Errorf("retry wait: %w (last error: %w)", err, lastErr), fields)
		}
	}
}

func exhaust[T any](c *Controller, attempt int, err error, fields []zap.Field) Outcome[T] {
	c.logger.Error("listing dropped after retries", append(fields,
		zap.Int("attempts", attempt),
		zap.Error(err),
	)...)
	c.notify(Exhausted, attempt, err)
	return Outcome[T]{State: Exhausted, Attempts: attempt, Err: err}
}

func (c *Controller) notify(state State, attempt int, err error) {
	if c.observer != nil {
		c.observer(state, attempt, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
