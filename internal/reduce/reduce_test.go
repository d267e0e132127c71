package reduce_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/calcbench/internal/calc"
	"github.com/signalnine/calcbench/internal/calc/calctest"
	"github.com/signalnine/calcbench/internal/dispatch"
	"github.com/signalnine/calcbench/internal/reduce"
	"github.com/signalnine/calcbench/internal/retry"
)

func newReducer(t *testing.T, svc calc.Service, policy retry.Policy) *reduce.Reducer {
	t.Helper()
	noSleep := retry.WithSleep(func(context.Context, time.Duration) error { return nil })
	r, err := retry.New(policy, noSleep)
	require.NoError(t, err)
	return reduce.New(dispatch.New(svc, nil, nil), r, nil)
}

var defaultPolicy = retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		want  float64
		calls []calctest.Call
	}{
		{"single operator", "7*6", 42, []calctest.Call{{Op: "Multiply", A: 7, B: 6}}},
		{"single bracket", "(2+3)", 5, []calctest.Call{{Op: "Add", A: 2, B: 3}}},
		{"nested", "((2+3)*4)", 20, []calctest.Call{{Op: "Add", A: 2, B: 3}, {Op: "Multiply", A: 5, B: 4}}},
		{"siblings then final pass", "(10-4)/(1+2)", 2, []calctest.Call{{Op: "Subtract", A: 10, B: 4}, {Op: "Add", A: 1, B: 2}, {Op: "Divide", A: 6, B: 3}}},
		{"literal in brackets", "(5)", 5, nil},
		{"plain literal", " 12.5 ", 12.5, nil},
		{"spaces around operator", "( 8 - 3 )", 5, []calctest.Call{{Op: "Subtract", A: 8, B: 3}}},
		{"decimal operands are rounded", "(2.4+3.6)", 6, []calctest.Call{{Op: "Add", A: 2, B: 4}}},
		{"only first triple per bracket", "(2+3+4)", 5, []calctest.Call{{Op: "Add", A: 2, B: 3}}},
		{"only first triple in final pass", "2+3+4", 5, []calctest.Call{{Op: "Add", A: 2, B: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &calctest.Service{}
			ev, err := newReducer(t, svc, defaultPolicy).Evaluate(context.Background(), tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Value)
			assert.Equal(t, tt.calls, svc.Calls)
			assert.Equal(t, len(tt.calls), ev.RemoteCalls)
			assert.Equal(t, 0, ev.Fault)
		})
	}
}

func TestEvaluateSteps(t *testing.T) {
	svc := &calctest.Service{}
	ev, err := newReducer(t, svc, defaultPolicy).Evaluate(context.Background(), "((2+3)*4)")
	require.NoError(t, err)
	require.Len(t, ev.Steps, 2)
	assert.Equal(t, "(2+3)", ev.Steps[0].Span)
	assert.Equal(t, "(5*4)", ev.Steps[0].After)
	assert.Equal(t, "(5*4)", ev.Steps[1].Span)
	assert.Equal(t, "20", ev.Steps[1].After)
}

func TestEvaluateBracketReducesToPlainNumber(t *testing.T) {
	svc := &calctest.Service{}
	ev, err := newReducer(t, svc, defaultPolicy).Evaluate(context.Background(), "(2+3)")
	require.NoError(t, err)
	require.Len(t, ev.Steps, 1)
	assert.Equal(t, "5", ev.Steps[0].After, "no parentheses and no trailing .0")
}

func TestEvaluateDivideByZero(t *testing.T) {
	svc := &calctest.Service{}
	ev, err := newReducer(t, svc, defaultPolicy).Evaluate(context.Background(), "(5/0)")
	require.Error(t, err)
	assert.True(t, errors.Is(err, reduce.ErrDispatch))
	assert.True(t, errors.Is(err, dispatch.ErrDivideByZero))
	assert.Equal(t, 1, ev.Fault)
	assert.Equal(t, 500, ev.Status)
	assert.Equal(t, 0, ev.RemoteCalls)
	assert.Equal(t, 2, ev.Retries, "deterministic faults use the full attempt budget")
	assert.Empty(t, svc.Calls)
}

func TestEvaluateAbortsWithoutPartialResult(t *testing.T) {
	svc := &calctest.Service{Fail: func(attempt int, c calctest.Call) error {
		if c.Op == "Multiply" {
			return &calc.Fault{Op: c.Op, Kind: calc.Transient, Message: "unavailable"}
		}
		return nil
	}}
	ev, err := newReducer(t, svc, defaultPolicy).Evaluate(context.Background(), "((2+3)*4)")
	require.Error(t, err)
	assert.Zero(t, ev.Value)
	assert.Len(t, ev.Steps, 1)
	assert.Equal(t, 1+3, ev.RemoteCalls, "one add plus three multiply attempts")
	assert.Equal(t, 2, ev.Retries)
}

func TestEvaluateRetriesAccumulate(t *testing.T) {
	svc := &calctest.Service{Fail: calctest.FailFirst(2)}
	ev, err := newReducer(t, svc, defaultPolicy).Evaluate(context.Background(), "(2+3)")
	require.NoError(t, err)
	assert.Equal(t, 5.0, ev.Value)
	assert.Equal(t, 3, ev.RemoteCalls)
	assert.Equal(t, 2, ev.Retries)
	assert.Equal(t, 2*dispatch.FaultRequestBytes+dispatch.RequestOverhead+2, ev.RequestBytes)
}

func TestEvaluateParseFailures(t *testing.T) {
	for _, expr := range []string{"abc", "4--3", "1.2.3", "(2+"} {
		t.Run(expr, func(t *testing.T) {
			svc := &calctest.Service{}
			_, err := newReducer(t, svc, defaultPolicy).Evaluate(context.Background(), expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, reduce.ErrParse))
			assert.Empty(t, svc.Calls)
		})
	}
}

func TestEvaluateEmpty(t *testing.T) {
	_, err := newReducer(t, &calctest.Service{}, defaultPolicy).Evaluate(context.Background(), "  ")
	assert.ErrorIs(t, err, reduce.ErrEmptyExpression)
}
