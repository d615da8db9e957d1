package search

import (
	"context"
	"iter"
	"log/slog"

	"github.com/cwbudde/gridopt/internal/placement"
)

// GradientDescent minimizes the zone cost by steepest descent on forward
// finite-difference gradients.
type GradientDescent struct {
	*base
	bounds  placement.WeightBounds
	tracker *placement.ConvergenceTracker
}

// NewGradientDescent validates opts and builds a driver. The driver works on
// its own copy of the configuration; the caller's map is never modified.
func NewGradientDescent(opts Options) (*GradientDescent, error) {
	b, err := newBase(MethodGD, opts)
	if err != nil {
		return nil, err
	}
	return &GradientDescent{
		base:    b,
		bounds:  placement.WeightBounds{MinWeight: opts.Params.MinWeight},
		tracker: placement.NewConvergenceTracker(opts.Params.Convergence),
	}, nil
}

// Run returns the lazy progress sequence. Iterations 0..MaxIter run in order;
// an event is yielded whenever the loop index is a multiple of the cadence.
// Stopping consumption stops the run between iterations.
func (d *GradientDescent) Run(ctx context.Context) iter.Seq2[Progress, error] {
	return func(yield func(Progress, error) bool) {
		if err := d.begin(); err != nil {
			yield(Progress{}, err)
			return
		}

		slog.Info("Starting gradient descent",
			"max_iter", d.params.MaxIter,
			"learning_rate", d.params.LearningRate,
			"optimizable", len(d.ids),
			"stations", len(d.cfg),
		)

		for i := 0; i <= d.params.MaxIter; i++ {
			if err := ctx.Err(); err != nil {
				yield(Progress{Iteration: i}, err)
				return
			}

			if err := d.step(ctx, i); err != nil {
				slog.Error("Gradient descent step failed", "iteration", i, "error", err)
				yield(Progress{Iteration: i}, &IterationError{Iteration: i, Err: err})
				return
			}

			if i%d.cadence == 0 {
				p, err := d.snapshot(i)
				if err != nil {
					yield(p, &IterationError{Iteration: i, Err: err})
					return
				}
				slog.Debug("Snapshot", "iteration", i, "score", p.Score, "path", p.Snapshot)
				if !yield(p, nil) {
					return
				}
				if d.tracker.Update(p.Score) {
					d.state.Iteration++
					return
				}
			}
			d.state.Iteration++
		}

		slog.Info("Gradient descent complete", "iterations", d.state.Iteration, "score", d.state.LastScore)
	}
}

// step estimates the gradient and moves every optimizable parameter against it
func (d *GradientDescent) step(ctx context.Context, i int) error {
	grad, err := placement.EstimateGradient(ctx, d.field, d.cfg, d.ids, placement.Steps{
		XY:      d.params.DXY,
		Weight:  d.params.DW,
		Workers: d.params.Workers,
	})
	if err != nil {
		return err
	}

	// Commit only a fully valid step
	next := d.cfg.Clone()
	for _, id := range d.ids {
		s := next[id]
		for _, p := range placement.Params {
			s.Set(p, s.Get(p)-grad[id].Get(p)*d.params.LearningRate)
		}
		s, err = d.bounds.Apply(id, s, i)
		if err != nil {
			return err
		}
		next[id] = s
	}
	d.cfg = next
	return nil
}
