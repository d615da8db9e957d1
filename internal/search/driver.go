package search

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/cwbudde/gridopt/internal/placement"
)

// ErrAlreadyRun is yielded when a driver's sequence is consumed a second time.
// A finished or abandoned run cannot be restarted; build a new driver.
var ErrAlreadyRun = errors.New("driver has already run")

// Renderer produces a snapshot of the current cost field and configuration
// and returns an opaque path for it.
type Renderer interface {
	Render(field *placement.CostField, cfg placement.Configuration, iteration int) (string, error)
}

// OutputCleaner removes snapshot artifacts of earlier runs
type OutputCleaner interface {
	Clear() error
}

// Progress is one event of the run sequence, emitted at the snapshot cadence
type Progress struct {
	Iteration int     `json:"iteration"`
	Snapshot  string  `json:"snapshot"`
	Score     float64 `json:"score"`
}

// State is the optimizer bookkeeping visible to callers
type State struct {
	Iteration int     `json:"iteration"`
	LastScore float64 `json:"last_score"`
	Method    Method  `json:"method"`
}

// Driver runs one optimization as a lazy sequence of progress events.
// A fault ends the sequence with a single (Progress{Iteration: i}, err) pair.
type Driver interface {
	Run(ctx context.Context) iter.Seq2[Progress, error]
	Final() placement.Configuration
	State() State
}

// IterationError attaches the loop index to a fault raised inside the loop
type IterationError struct {
	Iteration int
	Err       error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iteration %d: %v", e.Iteration, e.Err)
}

func (e *IterationError) Unwrap() error {
	return e.Err
}

// Options bundles the collaborators and inputs shared by every driver
type Options struct {
	Field         *placement.CostField
	Configuration placement.Configuration
	Optimizable   []string
	Params        Hyperparameters
	Renderer      Renderer      // Optional; nil yields empty snapshot paths
	Cleaner       OutputCleaner // Optional
	Proposer      Proposer      // SA only
}

// New builds the driver for method. All validation happens here, before any
// collaborator is called.
func New(method Method, opts Options) (Driver, error) {
	switch method {
	case MethodGD:
		return NewGradientDescent(opts)
	case MethodSA:
		return NewSimulatedAnnealing(opts)
	}
	return nil, &placement.ConfigError{Field: "method", Reason: "unknown optimization method " + string(method)}
}

// base holds what both drivers share: validated inputs, run-local state and
// the snapshot cadence.
type base struct {
	field    *placement.CostField
	cfg      placement.Configuration
	ids      []string
	params   Hyperparameters
	renderer Renderer
	cleaner  OutputCleaner
	cadence  int
	state    State
	started  bool
}

func newBase(method Method, opts Options) (*base, error) {
	if opts.Field == nil {
		return nil, &placement.ConfigError{Field: "zones", Reason: "cost field is required"}
	}
	if err := opts.Params.Validate(method); err != nil {
		return nil, err
	}
	if err := opts.Configuration.Validate(); err != nil {
		return nil, err
	}
	ids, err := placement.ResolveOptimizable(opts.Configuration, opts.Optimizable)
	if err != nil {
		return nil, err
	}

	return &base{
		field:    opts.Field,
		cfg:      opts.Configuration.Clone(),
		ids:      ids,
		params:   opts.Params,
		renderer: opts.Renderer,
		cleaner:  opts.Cleaner,
		cadence:  Cadence(opts.Params.MaxIter),
		state:    State{Method: method},
	}, nil
}

// Final returns a copy of the configuration as it stands
func (b *base) Final() placement.Configuration {
	return b.cfg.Clone()
}

// State returns the current optimizer state
func (b *base) State() State {
	return b.state
}

// Optimizable returns the resolved set of tunable station ids
func (b *base) Optimizable() []string {
	return append([]string{}, b.ids...)
}

// begin marks the driver as started and clears old outputs
func (b *base) begin() error {
	if b.started {
		return ErrAlreadyRun
	}
	b.started = true

	if b.cleaner != nil {
		if err := b.cleaner.Clear(); err != nil {
			return fmt.Errorf("failed to clear outputs: %w", err)
		}
	}
	return nil
}

// snapshot evaluates the current configuration and asks the renderer for an image
func (b *base) snapshot(i int) (Progress, error) {
	score, err := b.field.Evaluate(b.cfg)
	if err != nil {
		return Progress{Iteration: i}, err
	}
	b.state.LastScore = score

	var path string
	if b.renderer != nil {
		path, err = b.renderer.Render(b.field, b.cfg.Clone(), b.state.Iteration)
		if err != nil {
			return Progress{Iteration: i}, fmt.Errorf("failed to render snapshot: %w", err)
		}
	}

	return Progress{Iteration: i, Snapshot: path, Score: score}, nil
}
