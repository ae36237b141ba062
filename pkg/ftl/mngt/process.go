// Package mngt runs device management processes: ordered lists of steps
// that bring a device up or take it down.
//
// Steps run strictly one after another. The first failing step stops the
// process and the rollbacks of the steps that already completed run in
// reverse order. Every process and step is traced and timed.
package mngt

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/dittoftl/internal/logger"
	"github.com/marmos91/dittoftl/internal/telemetry"
	"github.com/marmos91/dittoftl/pkg/ftl"
)

// Action is the body of a step, or its rollback.
type Action func(ctx context.Context, dev *ftl.Device) error

// Step is one named unit of a management process.
type Step struct {
	Name string

	// Action performs the step.
	Action Action

	// Rollback undoes a completed step when a later step fails. Optional.
	Rollback Action
}

// Process is an ordered list of steps.
type Process struct {
	Name  string
	Steps []Step

	// Metrics observes each step; nil disables it.
	Metrics Metrics
}

// Metrics observes step executions.
type Metrics interface {
	ObserveStep(process, step string, d time.Duration, err error)
}

// StepResult records the outcome of one step.
type StepResult struct {
	Name       string        `json:"name" yaml:"name"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Err        error         `json:"-" yaml:"-"`
	RolledBack bool          `json:"rolled_back,omitempty" yaml:"rolled_back,omitempty"`
}

// Result records every step a process attempted, in execution order.
type Result struct {
	Process string       `json:"process" yaml:"process"`
	Steps   []StepResult `json:"steps" yaml:"steps"`
}

// Duration returns the total time spent in steps.
func (r Result) Duration() time.Duration {
	var d time.Duration
	for _, s := range r.Steps {
		d += s.Duration
	}
	return d
}

// StepError reports the step that stopped a process.
//
//	var se *mngt.StepError
//	if errors.As(err, &se) {
//		fmt.Println(se.Step) // "finalize_init_bands"
//	}
type StepError struct {
	Process string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed: %v", e.Process, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Run executes the process against dev.
func (p *Process) Run(ctx context.Context, dev *ftl.Device) (Result, error) {
	ctx, span := telemetry.StartProcessSpan(ctx, p.Name, telemetry.Device(dev.Name), telemetry.Create(dev.Create()))
	defer span.End()

	// Stages log the device themselves.
	lc := logger.NewLogContext("").
		WithProcess(p.Name).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	logger.InfoCtx(ctx, "management process started",
		logger.Device(dev.Name), logger.Count(uint64(len(p.Steps))))

	res := Result{Process: p.Name, Steps: make([]StepResult, 0, len(p.Steps))}

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return res, p.fail(ctx, dev, &res, i, step.Name, err)
		}

		d, err := p.runStep(ctx, lc, dev, step)
		res.Steps = append(res.Steps, StepResult{Name: step.Name, Duration: d, Err: err})
		if err != nil {
			return res, p.fail(ctx, dev, &res, i, step.Name, err)
		}
	}

	logger.InfoCtx(ctx, "management process completed",
		logger.Device(dev.Name), logger.DurationMs(lc.DurationMs()))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (p *Process) runStep(ctx context.Context, lc *logger.LogContext, dev *ftl.Device, step Step) (time.Duration, error) {
	ctx, span := telemetry.StartStepSpan(ctx, p.Name, step.Name, telemetry.Device(dev.Name))
	defer span.End()

	ctx = logger.WithContext(ctx, lc.WithStep(step.Name))
	logger.DebugCtx(ctx, "step started")

	start := time.Now()
	err := step.Action(ctx, dev)
	d := time.Since(start)

	if p.Metrics != nil {
		p.Metrics.ObserveStep(p.Name, step.Name, d, err)
	}

	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "step failed", logger.DurationMs(logger.Duration(start)), logger.Err(err))
		return d, err
	}

	telemetry.SetStatus(ctx, codes.Ok, "")
	logger.DebugCtx(ctx, "step completed", logger.DurationMs(logger.Duration(start)))
	return d, nil
}

// fail rolls back the steps before failed and wraps err.
func (p *Process) fail(ctx context.Context, dev *ftl.Device, res *Result, failed int, name string, err error) error {
	telemetry.RecordError(ctx, err)

	for i := failed - 1; i >= 0; i-- {
		step := p.Steps[i]
		if step.Rollback == nil {
			continue
		}
		rctx := logger.WithContext(ctx, logger.FromContext(ctx).WithStep(step.Name))
		if rerr := step.Rollback(rctx, dev); rerr != nil {
			logger.WarnCtx(rctx, "rollback failed", logger.Err(rerr))
			continue
		}
		res.Steps[i].RolledBack = true
		logger.DebugCtx(rctx, "step rolled back")
	}

	return &StepError{Process: p.Name, Step: name, Err: err}
}
