// Package reduce evaluates an infix expression by repeatedly replacing its
// innermost bracket with the result of one remote binary operation.
//
// The reduction is deliberately narrow. Only the first "operand op operand"
// triple inside a bracket is dispatched and the whole bracket is replaced by
// its result, so "(2+3+4)" becomes "5". Operands are unsigned; a leading "-"
// is read as an operator. Wrong values produced this way are left for the
// correctness check to reject.
package reduce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/signalnine/calcbench/internal/calc"
	"github.com/signalnine/calcbench/internal/dispatch"
	"github.com/signalnine/calcbench/internal/logging"
	"github.com/signalnine/calcbench/internal/retry"
)

var (
	ErrEmptyExpression = errors.New("empty expression")
	// ErrParse means nothing reducible remained and the residue is not a number.
	ErrParse = errors.New("cannot parse expression")
	// ErrDispatch means an operation failed after its retries.
	ErrDispatch = errors.New("operation failed")
)

var (
	innermostRe = regexp.MustCompile(`\(([^()]+)\)`)
	tripleRe    = regexp.MustCompile(`([\d.]+)\s*([+\-*/])\s*([\d.]+)`)
)

// Step is one dispatched reduction.
type Step struct {
	// Span is the text that was replaced: a bracket, or the whole residue in
	// the final pass.
	Span   string
	A      float64
	Op     calc.Op
	B      float64
	Result float64
	// Before and After are the expression around the substitution.
	Before string
	After  string
}

// Evaluation carries the value and the accounting threaded back for metrics.
// It is populated on failure too.
type Evaluation struct {
	Value         float64
	Steps         []Step
	RemoteCalls   int
	Attempts      int
	Retries       int
	RequestBytes  int
	ResponseBytes int
	// Status and Fault come from the last dispatch; 200/0 when none was made.
	Status int
	Fault  int
}

type Reducer struct {
	dispatcher *dispatch.Dispatcher
	retrier    *retry.Controller
	logger     *slog.Logger
}

func New(d *dispatch.Dispatcher, r *retry.Controller, logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reducer{dispatcher: d, retrier: r, logger: logger}
}

// Evaluate reduces expr to a single number. Any failed operation aborts the
// evaluation; no partial value is returned.
func (r *Reducer) Evaluate(ctx context.Context, expr string) (Evaluation, error) {
	ev := Evaluation{Status: 200}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ev, ErrEmptyExpression
	}

	for strings.Contains(expr, "(") {
		loc := innermostRe.FindStringSubmatchIndex(expr)
		if loc == nil {
			break
		}
		span := expr[loc[0]:loc[1]]
		inner := strings.TrimSpace(expr[loc[2]:loc[3]])

		t, ok := matchTriple(inner)
		if !ok {
			expr = expr[:loc[0]] + inner + expr[loc[1]:]
			continue
		}
		v, err := r.apply(ctx, &ev, t)
		if err != nil {
			return ev, fmt.Errorf("reducing %s: %w", span, err)
		}
		next := expr[:loc[0]] + formatNumber(v) + expr[loc[1]:]
		ev.Steps = append(ev.Steps, Step{Span: span, A: t.a, Op: t.op, B: t.b, Result: v, Before: expr, After: next})
		expr = next
	}

	if t, ok := matchTriple(expr); ok {
		v, err := r.apply(ctx, &ev, t)
		if err != nil {
			return ev, fmt.Errorf("reducing %s: %w", expr, err)
		}
		ev.Steps = append(ev.Steps, Step{Span: expr, A: t.a, Op: t.op, B: t.b, Result: v, Before: expr, After: formatNumber(v)})
		ev.Value = v
		return ev, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(expr), 64)
	if err != nil {
		return ev, fmt.Errorf("%w: residue %q", ErrParse, expr)
	}
	ev.Value = v
	return ev, nil
}

type triple struct {
	a, b float64
	op   calc.Op
}

func matchTriple(s string) (triple, bool) {
	m := tripleRe.FindStringSubmatch(s)
	if m == nil {
		return triple{}, false
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[3], 64)
	if errA != nil || errB != nil {
		// Runs like "1.2.3" match [\d.]+ but are not numbers.
		return triple{}, false
	}
	return triple{a: a, op: calc.Op(m[2][0]), b: b}, true
}

func (r *Reducer) apply(ctx context.Context, ev *Evaluation, t triple) (float64, error) {
	out := r.retrier.Do(ctx, func(ctx context.Context) dispatch.Result {
		return r.dispatcher.Dispatch(ctx, t.op, t.a, t.b)
	})
	ev.RemoteCalls += out.RemoteCalls
	ev.Attempts += out.Attempts
	ev.Retries += out.Retries()
	ev.RequestBytes += out.RequestBytes
	ev.ResponseBytes += out.ResponseBytes
	ev.Status = out.Status
	ev.Fault = out.Fault

	if !out.OK() {
		r.logger.Debug("operation failed", "a", t.a, "op", t.op, "b", t.b, "attempts", out.Attempts, "error", out.Err)
		return 0, fmt.Errorf("%w: %s %s %s: %w", ErrDispatch, formatNumber(t.a), t.op, formatNumber(t.b), out.Err)
	}
	return *out.Value, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
