package search

import (
	"context"
	"iter"
	"log/slog"

	"github.com/cwbudde/gridopt/internal/placement"
)

// Proposer is the extension point of the annealing driver: given the current
// state it returns the configuration to continue from. Candidate generation,
// the accept/reject rule and the temperature schedule all live behind it.
// Implementations must not modify cfg.
type Proposer interface {
	Propose(ctx context.Context, field *placement.CostField, cfg placement.Configuration, ids []string, state State) (placement.Configuration, error)
}

// ProposerFunc adapts a function to Proposer
type ProposerFunc func(ctx context.Context, field *placement.CostField, cfg placement.Configuration, ids []string, state State) (placement.Configuration, error)

func (f ProposerFunc) Propose(ctx context.Context, field *placement.CostField, cfg placement.Configuration, ids []string, state State) (placement.Configuration, error) {
	return f(ctx, field, cfg, ids, state)
}

// SimulatedAnnealing follows the same iteration and snapshot contract as
// GradientDescent. It has no acceptance rule of its own: without a Proposer
// the configuration is left unchanged and only the snapshot cadence runs.
type SimulatedAnnealing struct {
	*base
	proposer Proposer
}

// NewSimulatedAnnealing validates opts and builds the skeleton driver
func NewSimulatedAnnealing(opts Options) (*SimulatedAnnealing, error) {
	b, err := newBase(MethodSA, opts)
	if err != nil {
		return nil, err
	}
	return &SimulatedAnnealing{base: b, proposer: opts.Proposer}, nil
}

// Run returns the lazy progress sequence
func (d *SimulatedAnnealing) Run(ctx context.Context) iter.Seq2[Progress, error] {
	return func(yield func(Progress, error) bool) {
		if err := d.begin(); err != nil {
			yield(Progress{}, err)
			return
		}

		slog.Info("Starting simulated annealing", "max_iter", d.params.MaxIter, "proposer", d.proposer != nil)

		for i := 0; i <= d.params.MaxIter; i++ {
			if err := ctx.Err(); err != nil {
				yield(Progress{Iteration: i}, err)
				return
			}

			if d.proposer != nil {
				next, err := d.proposer.Propose(ctx, d.field, d.cfg.Clone(), d.Optimizable(), d.state)
				if err == nil {
					err = checkProposal(d.cfg, next, i)
				}
				if err != nil {
					yield(Progress{Iteration: i}, &IterationError{Iteration: i, Err: err})
					return
				}
				d.cfg = next.Clone()
			}

			if i%d.cadence == 0 {
				p, err := d.snapshot(i)
				if err != nil {
					yield(p, &IterationError{Iteration: i, Err: err})
					return
				}
				if !yield(p, nil) {
					return
				}
			}
			d.state.Iteration++
		}

		slog.Info("Simulated annealing complete", "iterations", d.state.Iteration, "score", d.state.LastScore)
	}
}

// checkProposal rejects proposals that add or drop stations or carry a bad weight
func checkProposal(prev, next placement.Configuration, i int) error {
	if len(next) != len(prev) {
		return &placement.ConfigError{Field: "proposal", Reason: "changed the station set"}
	}
	for id, s := range next {
		if _, ok := prev[id]; !ok {
			return &placement.ConfigError{Field: "proposal", Reason: "introduced unknown station " + id}
		}
		if _, err := (placement.WeightBounds{}).Apply(id, s, i); err != nil {
			return err
		}
	}
	return nil
}
