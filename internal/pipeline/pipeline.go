package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/vfs19/edlscan/internal/model"
)

// Step defines the interface that all diagnostic probes must implement.
// Probes are executed in sequence, with each probe appending its result
// to the accumulated report.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows probes to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., probe dependencies)
type Step interface {
	// Do executes the probe and appends its result to the report.
	// Returns an error only on critical failure; a probe that merely
	// observes a problem records it as a failed ProbeResult and
	// returns nil.
	Do(ctx context.Context, report *model.DiagnosticReport) error

	// Name returns the probe's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple probes.
// It maintains a list of probes and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of probes to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing probes
	// after one fails critically. If false, the pipeline stops on
	// first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a probe fails critically.
//
// Design decision: The default is to stop on error because an early
// critical failure (tool missing, transport gone) means every later
// probe would fail for the same reason and only add noise.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Probes should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a probe to the pipeline.
// Probes are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple probes to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all probes in sequence.
// It respects context cancellation and logs each probe's execution.
//
// Design decision: We check context.Done() before each probe rather
// than during, because probes handle their own timeouts. This allows
// graceful cleanup between probes while still respecting cancellation.
func (p *Pipeline) Execute(ctx context.Context, report *model.DiagnosticReport) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("diagnostics cancelled",
				"probe", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Info("running probe", "probe", step.Name())

		start := time.Now()
		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("probe failed",
				"probe", step.Name(),
				"elapsed", time.Since(start),
				"error", err,
			)

			report.AddProbe(model.ProbeResult{
				Name:    step.Name(),
				OK:      false,
				Detail:  err.Error(),
				Elapsed: time.Since(start),
			})

			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("probe completed",
			"probe", step.Name(),
			"elapsed", time.Since(start),
		)
	}

	return nil
}

// StepCount returns the number of probes in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all probes in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
