package retry_test

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
	"github.com/signalnine/calcbench/internal/retry"
)

// recordSleep captures requested backoff delays without sleeping.
func recordSleep(delays *[]time.Duration) retry.Option {
	return retry.WithSleep(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func addAttempt(d *dispatch.Dispatcher, a, b float64) retry.Attempt {
	return func(ctx context.Context) dispatch.Result {
		return d.Dispatch(ctx, calc.OpAdd, a, b)
	}
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	svc := &calctest.Service{Fail: calctest.FailFirst(2)}
	var delays []time.Duration
	c, err := retry.New(retry.Policy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond}, recordSleep(&delays))
	require.NoError(t, err)

	out := c.Do(context.Background(), addAttempt(dispatch.New(svc, nil, nil), 2, 3))
	require.True(t, out.OK())
	assert.Equal(t, 5.0, *out.Value)
	assert.Equal(t, 3, out.RemoteCalls)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 2, out.Retries())
	assert.Equal(t, 0, out.Fault)
	assert.Equal(t, 200, out.Status)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)

	wantReq := 2*dispatch.FaultRequestBytes + dispatch.RequestOverhead + 2
	wantResp := 2*dispatch.FaultResponseBytes + dispatch.ResponseOverhead + 1
	assert.Equal(t, wantReq, out.RequestBytes)
	assert.Equal(t, wantResp, out.ResponseBytes)
}

func TestDoExhaustsTransientFaults(t *testing.T) {
	svc := &calctest.Service{Fail: calctest.Always(calc.Transient)}
	var delays []time.Duration
	c, err := retry.New(retry.Policy{MaxRetries: 3, BaseDelay: time.Second}, recordSleep(&delays))
	require.NoError(t, err)

	out := c.Do(context.Background(), addAttempt(dispatch.New(svc, nil, nil), 1, 1))
	assert.False(t, out.OK())
	assert.Equal(t, 3, out.RemoteCalls)
	assert.Equal(t, 500, out.Status)
	assert.Equal(t, 1, out.Fault)
	assert.Equal(t, 3*dispatch.FaultRequestBytes, out.RequestBytes)
	assert.Len(t, delays, 2, "no sleep after the last attempt")
	assert.Error(t, out.Err)
}

func divideByZero(svc *calctest.Service) retry.Attempt {
	return func(ctx context.Context) dispatch.Result {
		return dispatch.New(svc, nil, nil).Dispatch(ctx, calc.OpDivide, 5, 0)
	}
}

func TestDoRetriesDeterministicFaultsByDefault(t *testing.T) {
	svc := &calctest.Service{}
	var delays []time.Duration
	c, err := retry.New(retry.Policy{MaxRetries: retry.DefaultMaxRetries, BaseDelay: retry.DefaultBaseDelay}, recordSleep(&delays))
	require.NoError(t, err)

	out := c.Do(context.Background(), divideByZero(svc))
	assert.False(t, out.OK())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 2, out.Retries())
	assert.Equal(t, 0, out.RemoteCalls)
	assert.Empty(t, svc.Calls)
	assert.Equal(t, 500, out.Status)
	assert.Equal(t, calc.Deterministic, out.Kind)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
	assert.True(t, errors.Is(out.Err, dispatch.ErrDivideByZero))
}

func TestDoRetriesUnknownOperatorByDefault(t *testing.T) {
	svc := &calctest.Service{}
	var delays []time.Duration
	c, err := retry.New(retry.Policy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond}, recordSleep(&delays))
	require.NoError(t, err)

	out := c.Do(context.Background(), func(ctx context.Context) dispatch.Result {
		return dispatch.New(svc, nil, nil).Dispatch(ctx, calc.Op('%'), 5, 2)
	})
	assert.False(t, out.OK())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 0, out.RemoteCalls)
	assert.Equal(t, 400, out.Status)
	assert.Len(t, delays, 2)
}

func TestDoSkipDeterministicStopsAtFirstFault(t *testing.T) {
	svc := &calctest.Service{}
	var delays []time.Duration
	c, err := retry.New(retry.Policy{MaxRetries: 3, BaseDelay: time.Second, SkipDeterministic: true}, recordSleep(&delays))
	require.NoError(t, err)

	out := c.Do(context.Background(), divideByZero(svc))
	assert.False(t, out.OK())
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 0, out.RemoteCalls)
	assert.Equal(t, 500, out.Status)
	assert.Equal(t, calc.Deterministic, out.Kind)
	assert.Empty(t, delays)
	assert.True(t, errors.Is(out.Err, dispatch.ErrDivideByZero))
}

func TestDoSkipDeterministicStillRetriesTransient(t *testing.T) {
	svc := &calctest.Service{Fail: calctest.FailFirst(1)}
	var delays []time.Duration
	c, err := retry.New(retry.Policy{MaxRetries: 3, BaseDelay: time.Second, SkipDeterministic: true}, recordSleep(&delays))
	require.NoError(t, err)

	out := c.Do(context.Background(), addAttempt(dispatch.New(svc, nil, nil), 2, 3))
	require.True(t, out.OK())
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, delays)
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	svc := &calctest.Service{Fail: calctest.Always(calc.Transient)}
	c, err := retry.New(retry.Policy{MaxRetries: 5, BaseDelay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	out := c.Do(ctx, func(ctx context.Context) dispatch.Result {
		attempts++
		cancel()
		return dispatch.New(svc, nil, nil).Dispatch(ctx, calc.OpAdd, 1, 2)
	})
	assert.False(t, out.OK())
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(out.Err, context.Canceled))
}

func TestNewValidatesPolicy(t *testing.T) {
	_, err := retry.New(retry.Policy{MaxRetries: 0})
	assert.Error(t, err)
	_, err = retry.New(retry.Policy{MaxRetries: 1, BaseDelay: -time.Second})
	assert.Error(t, err)
}
