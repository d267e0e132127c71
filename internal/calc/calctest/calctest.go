// Package calctest provides calc.Service doubles for tests.
package calctest

import (
	"context"
	"fmt"

	"github.com/signalnine/calcbench/internal/calc"
)

// Call is one recorded invocation.
type Call struct {
	Op   string
	A, B int64
}

// Service computes integer arithmetic locally and records every call. If
// Fail is set it is consulted first; a non-nil error is returned instead of
// the value. Attempt numbers start at 1 and count all calls.
type Service struct {
	Fail  func(attempt int, c Call) error
	Calls []Call
}

var _ calc.Service = (*Service)(nil)

func (s *Service) Add(ctx context.Context, a, b int64) (int64, error) {
	return s.do(ctx, "Add", a, b, func() int64 { return a + b })
}

func (s *Service) Subtract(ctx context.Context, a, b int64) (int64, error) {
	return s.do(ctx, "Subtract", a, b, func() int64 { return a - b })
}

func (s *Service) Multiply(ctx context.Context, a, b int64) (int64, error) {
	return s.do(ctx, "Multiply", a, b, func() int64 { return a * b })
}

func (s *Service) Divide(ctx context.Context, a, b int64) (int64, error) {
	return s.do(ctx, "Divide", a, b, func() int64 {
		if b == 0 {
			return 0
		}
		return a / b
	})
}

func (s *Service) do(ctx context.Context, op string, a, b int64, f func() int64) (int64, error) {
	c := Call{Op: op, A: a, B: b}
	s.Calls = append(s.Calls, c)
	if err := ctx.Err(); err != nil {
		return 0, &calc.Fault{Op: op, Kind: calc.Transient, Message: "canceled", Cause: err}
	}
	if s.Fail != nil {
		if err := s.Fail(len(s.Calls), c); err != nil {
			return 0, err
		}
	}
	if op == "Divide" && b == 0 {
		return 0, &calc.Fault{Op: op, Kind: calc.Deterministic, Message: "divide by zero"}
	}
	return f(), nil
}

// FailFirst returns a Fail func producing transient faults for the first n calls.
func FailFirst(n int) func(int, Call) error {
	return func(attempt int, c Call) error {
		if attempt <= n {
			return &calc.Fault{Op: c.Op, Kind: calc.Transient, Message: fmt.Sprintf("attempt %d unavailable", attempt)}
		}
		return nil
	}
}

// Always returns a Fail func that fails every call with the given kind.
func Always(kind calc.FaultKind) func(int, Call) error {
	return func(_ int, c Call) error {
		return &calc.Fault{Op: c.Op, Kind: kind, Message: "service unavailable"}
	}
}
