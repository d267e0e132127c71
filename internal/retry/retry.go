// Package retry bounds and paces repeated attempts at one dispatch.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/signalnine/calcbench/internal/calc"
	"github.com/signalnine/calcbench/internal/dispatch"
	"github.com/signalnine/calcbench/internal/logging"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
)

var (
	errMaxRetriesInvalid = errors.New("max_retries must be greater than 0")
	errBaseDelayInvalid  = errors.New("base_delay must be >= 0")
)

type Policy struct {
	// MaxRetries is the total number of attempts, the first one included.
	MaxRetries int
	// BaseDelay scales the linear backoff: after failed attempt n the
	// controller sleeps n*BaseDelay. Attempts are counted from 1, so the
	// first pause is one BaseDelay and there is no pause after the last.
	BaseDelay time.Duration
	// SkipDeterministic stops at the first fault that cannot succeed on a
	// later attempt (divide by zero, unknown operator). Off by default, so
	// every failed attempt is retried.
	SkipDeterministic bool
}

// Attempt performs one dispatch.
type Attempt func(ctx context.Context) dispatch.Result

// Outcome is the result of a retried dispatch. Byte sizes and call counts
// cover every attempt, not only the last.
type Outcome struct {
	Value         *float64
	Attempts      int
	RemoteCalls   int
	RequestBytes  int
	ResponseBytes int
	// Status, Fault and Kind come from the last attempt.
	Status int
	Fault  int
	Kind   calc.FaultKind
	Err    error
}

func (o Outcome) OK() bool { return o.Value != nil }

// Retries is the number of attempts after the first.
func (o Outcome) Retries() int {
	if o.Attempts == 0 {
		return 0
	}
	return o.Attempts - 1
}

type Controller struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

type Option func(*Controller)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(p Policy, opts ...Option) (*Controller, error) {
	if p.MaxRetries <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxRetriesInvalid, p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return nil, fmt.Errorf("%w, got %v", errBaseDelayInvalid, p.BaseDelay)
	}
	c := &Controller{policy: p, sleep: sleepContext, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do runs attempt until it succeeds or the attempt budget is spent. With
// SkipDeterministic set it also stops at the first deterministic fault.
func (c *Controller) Do(ctx context.Context, attempt Attempt) Outcome {
	var out Outcome
	for n := 1; n <= c.policy.MaxRetries; n++ {
		res := attempt(ctx)
		out.Attempts++
		if res.Remote {
			out.RemoteCalls++
		}
		out.RequestBytes += res.RequestBytes
		out.ResponseBytes += res.ResponseBytes
		out.Status = res.Status
		out.Fault = res.Fault
		out.Kind = res.Kind
		out.Err = res.Err

		if res.OK() {
			out.Value = res.Value
			return out
		}
		if c.policy.SkipDeterministic && res.Kind == calc.Deterministic {
			c.logger.Debug("not retrying deterministic fault", "attempt", n, "error", res.Err)
			return out
		}
		if n == c.policy.MaxRetries {
			break
		}

		delay := time.Duration(n) * c.policy.BaseDelay
		c.logger.Debug("retrying dispatch", "attempt", n, "delay", delay, "kind", res.Kind, "error", res.Err)
		if err := c.sleep(ctx, delay); err != nil {
			out.Err = errors.Join(res.Err, err)
			return out
		}
	}
	c.logger.Debug("retries exhausted", "attempts", out.Attempts, "error", out.Err)
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
