// Package measure brackets one expression evaluation with timing, resource
// and correctness measurement and turns it into a trial record.
package measure

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/signalnine/calcbench/internal/dataset"
	"github.com/signalnine/calcbench/internal/logging"
	"github.com/signalnine/calcbench/internal/reduce"
	"github.com/signalnine/calcbench/internal/result"
)

// DefaultTolerance absorbs the integer rounding of the remote calculator.
const DefaultTolerance = 1.0

// Evaluator evaluates one expression.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string) (reduce.Evaluation, error)
}

type Config struct {
	Method    string
	Tolerance float64
	Sampler   ResourceSampler
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

type Collector struct {
	eval      Evaluator
	method    string
	tolerance float64
	sampler   ResourceSampler
	clock     func() time.Time
	logger    *slog.Logger
}

func New(eval Evaluator, cfg Config) *Collector {
	c := &Collector{
		eval:      eval,
		method:    cfg.Method,
		tolerance: cfg.Tolerance,
		sampler:   cfg.Sampler,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if c.tolerance <= 0 {
		c.tolerance = DefaultTolerance
	}
	if c.sampler == nil {
		c.sampler = DefaultSampler()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Measure evaluates row once and always returns a complete record; a failed
// evaluation is recorded with no output and Correct = 0.
func (c *Collector) Measure(ctx context.Context, row dataset.Row, epoch int) result.TrialRecord {
	before := c.sample()
	start := c.clock()

	ev, err := c.eval.Evaluate(ctx, row.Equation)

	elapsed := c.clock().Sub(start)
	after := c.sample()
	cpu := after.CPUTime - before.CPUTime
	if cpu < 0 {
		cpu = 0
	}

	rec := result.TrialRecord{
		ID:            row.ID,
		Epoch:         epoch,
		Equation:      row.Equation,
		Answer:        row.Answer,
		Type:          row.Type,
		Complexity:    row.Complexity,
		Method:        c.method,
		LatencyMS:     float64(elapsed) / float64(time.Millisecond),
		CPUTimeMS:     float64(cpu) / float64(time.Millisecond),
		RAMPeakMB:     rssDeltaMB(before, after),
		RequestBytes:  ev.RequestBytes,
		ResponseBytes: ev.ResponseBytes,
		RemoteCalls:   ev.RemoteCalls,
		Retries:       ev.Retries,
		Status:        ev.Status,
		Fault:         ev.Fault,
	}
	if err != nil {
		c.logger.Warn("evaluation failed", "id", row.ID, "epoch", epoch, "equation", row.Equation, "error", err)
		return rec
	}
	value := ev.Value
	rec.Output = &value
	if IsCorrect(rec.Output, row.Answer, c.tolerance) {
		rec.Correct = 1
	}
	return rec
}

func (c *Collector) sample() Sample {
	s, err := c.sampler.Sample()
	if err != nil {
		c.logger.Debug("resource sample failed", "error", err)
		return Sample{}
	}
	return s
}

// IsCorrect reports whether output is within tol of expected. A missing
// output is never correct.
func IsCorrect(output *float64, expected, tol float64) bool {
	if output == nil {
		return false
	}
	return math.Abs(*output-expected) < tol
}

// rssDeltaMB floors the change at zero; memory released between samples is
// not reported.
func rssDeltaMB(before, after Sample) float64 {
	if after.RSSBytes <= before.RSSBytes {
		return 0
	}
	return float64(after.RSSBytes-before.RSSBytes) / (1024 * 1024)
}
