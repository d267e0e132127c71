// Package dispatch performs one binary operation on the remote calculator and
// reports the outcome together with estimated wire sizes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/signalnine/calcbench/internal/calc"
	"github.com/signalnine/calcbench/internal/logging"
)

// Byte sizes are estimates. The service interface hides the wire, so a
// success is charged a fixed envelope overhead plus the digits sent and
// received, and a remote fault a fixed minimal envelope.
const (
	RequestOverhead    = 300
	ResponseOverhead   = 250
	FaultRequestBytes  = 200
	FaultResponseBytes = 100
)

var (
	ErrDivideByZero    = errors.New("divide by zero")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrOperandRange    = errors.New("operand out of integer range")
)

// Result is the outcome of a single dispatch.
type Result struct {
	// Value is nil when the operation failed.
	Value         *float64
	RequestBytes  int
	ResponseBytes int
	// Status is HTTP-like: 200 success, 400 rejected input, 500 fault.
	Status int
	// Fault is 1 on failure, 0 on success.
	Fault int
	Kind  calc.FaultKind
	Err   error
	// Remote reports whether the service was contacted.
	Remote bool
}

func (r Result) OK() bool { return r.Value != nil }

type Dispatcher struct {
	svc     calc.Service
	metrics *Metrics
	logger  *slog.Logger
}

// New returns a Dispatcher over svc. metrics and logger may be nil.
func New(svc calc.Service, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{svc: svc, metrics: metrics, logger: logger}
}

// Dispatch rounds a and b to integers and applies op remotely. Division by a
// zero divisor and unknown operators fail locally without a remote call.
func (d *Dispatcher) Dispatch(ctx context.Context, op calc.Op, a, b float64) Result {
	name := op.Name()
	if name == "" {
		d.metrics.record(string(op), outcomeRejected)
		return rejected(http.StatusBadRequest, fmt.Errorf("%w %q", ErrUnknownOperator, string(op)))
	}

	intA, okA := toInt(a)
	intB, okB := toInt(b)
	if !okA || !okB {
		d.metrics.record(name, outcomeRejected)
		return rejected(http.StatusBadRequest, fmt.Errorf("%w: %g %s %g", ErrOperandRange, a, op, b))
	}
	if op == calc.OpDivide && intB == 0 {
		d.metrics.record(name, outcomeRejected)
		return rejected(http.StatusInternalServerError, fmt.Errorf("%w: %d / 0", ErrDivideByZero, intA))
	}

	start := time.Now()
	v, err := calc.Call(ctx, d.svc, op, intA, intB)
	d.metrics.observe(name, time.Since(start).Seconds())

	if err != nil {
		kind := calc.KindOf(err)
		outcome := outcomeTransient
		if kind == calc.Deterministic {
			outcome = outcomeDeterministic
		}
		d.metrics.record(name, outcome)
		d.logger.Debug("dispatch fault", "op", name, "a", intA, "b", intB, "kind", kind, "error", err)
		return Result{
			RequestBytes:  FaultRequestBytes,
			ResponseBytes: FaultResponseBytes,
			Status:        http.StatusInternalServerError,
			Fault:         1,
			Kind:          kind,
			Err:           err,
			Remote:        true,
		}
	}

	d.metrics.record(name, outcomeOK)
	value := float64(v)
	return Result{
		Value:         &value,
		RequestBytes:  RequestOverhead + digits(intA) + digits(intB),
		ResponseBytes: ResponseOverhead + digits(v),
		Status:        http.StatusOK,
		Remote:        true,
	}
}

func rejected(status int, err error) Result {
	return Result{Status: status, Fault: 1, Kind: calc.Deterministic, Err: err}
}

func toInt(f float64) (int64, bool) {
	r := math.RoundToEven(f)
	if math.IsNaN(r) || r >= math.MaxInt64 || r < math.MinInt64 {
		return 0, false
	}
	return int64(r), true
}

func digits(n int64) int {
	return len(strconv.FormatInt(n, 10))
}
