// Package calc defines the capability the benchmark needs from a remote
// arithmetic service: four integer operations, each of which either returns a
// value or fails with a classified Fault.
package calc

import (
	"context"
	"errors"
	"fmt"
)

// Service is the narrow interface to the remote operation-evaluation service.
// Implementations decode their transport once and return either a value or a
// *Fault; callers never inspect transport-specific response shapes.
type Service interface {
	Add(ctx context.Context, a, b int64) (int64, error)
	Subtract(ctx context.Context, a, b int64) (int64, error)
	Multiply(ctx context.Context, a, b int64) (int64, error)
	Divide(ctx context.Context, a, b int64) (int64, error)
}

// Op is an infix arithmetic operator.
type Op byte

const (
	OpAdd      Op = '+'
	OpSubtract Op = '-'
	OpMultiply Op = '*'
	OpDivide   Op = '/'
)

func (o Op) String() string { return string(o) }

// Name returns the remote operation name for o, or "" if o is not supported.
func (o Op) Name() string {
	switch o {
	case OpAdd:
		return "Add"
	case OpSubtract:
		return "Subtract"
	case OpMultiply:
		return "Multiply"
	case OpDivide:
		return "Divide"
	default:
		return ""
	}
}

// Valid reports whether o maps to a remote operation.
func (o Op) Valid() bool { return o.Name() != "" }

// Call invokes the remote operation for op on svc.
func Call(ctx context.Context, svc Service, op Op, a, b int64) (int64, error) {
	switch op {
	case OpAdd:
		return svc.Add(ctx, a, b)
	case OpSubtract:
		return svc.Subtract(ctx, a, b)
	case OpMultiply:
		return svc.Multiply(ctx, a, b)
	case OpDivide:
		return svc.Divide(ctx, a, b)
	default:
		return 0, &Fault{Op: op.Name(), Kind: Deterministic, Message: fmt.Sprintf("unsupported operator %q", byte(op))}
	}
}

// FaultKind says whether a failed operation can succeed on a later attempt.
type FaultKind int

const (
	// Transient faults come from the network or the service and may clear up.
	Transient FaultKind = iota
	// Deterministic faults follow from the inputs and repeat on every attempt.
	Deterministic
)

func (k FaultKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Deterministic:
		return "deterministic"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// Fault is the failure result of a remote operation.
type Fault struct {
	Op      string
	Kind    FaultKind
	Message string
	Cause   error
}

func (f *Fault) Error() string {
	if f.Op == "" {
		return fmt.Sprintf("%s fault: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s fault: %s", f.Op, f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Cause }

// KindOf classifies err. Errors that are not a *Fault count as Transient.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return Transient
}
