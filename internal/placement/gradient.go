package placement

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WeightGradientUsesXYStep keeps the xy step as the finite-difference
// denominator for the weight partial, even though the weight is perturbed by
// the weight step. Flip it to divide the weight partial by Steps.Weight.
const WeightGradientUsesXYStep = true

// Steps configures the finite-difference perturbation
type Steps struct {
	XY     float64 // Perturbation of x_coord and y_coord, also the denominator
	Weight float64 // Perturbation of weight
	// Workers > 1 evaluates perturbations concurrently
	Workers int
}

type perturbation struct {
	id    string
	param Param
}

// EstimateGradient estimates the partial derivative of the objective with
// respect to every parameter of every station in ids, using a forward
// difference. It makes exactly 1+3*len(ids) objective calls and never
// modifies cfg; each perturbation works on its own copy.
func EstimateGradient(ctx context.Context, obj Objective, cfg Configuration, ids []string, steps Steps) (Gradient, error) {
	if steps.XY <= 0 {
		return nil, &ConfigError{Field: "dxy", Reason: "must be positive"}
	}
	for _, id := range ids {
		if _, ok := cfg[id]; !ok {
			return nil, &ConfigError{Field: "optimizable", Reason: "station " + id + " is not in the configuration"}
		}
	}

	base, err := obj.Score(cfg)
	if err != nil {
		return nil, err
	}

	jobs := make([]perturbation, 0, len(ids)*len(Params))
	for _, id := range ids {
		for _, p := range Params {
			jobs = append(jobs, perturbation{id: id, param: p})
		}
	}
	partials := make([]float64, len(jobs))

	eval := func(i int) error {
		job := jobs[i]
		perturbed := cfg.Clone()
		s := perturbed[job.id]
		s.Set(job.param, s.Get(job.param)+steps.stepFor(job.param))
		perturbed[job.id] = s

		score, err := obj.Score(perturbed)
		if err != nil {
			return err
		}
		partials[i] = (score - base) / steps.denominatorFor(job.param)
		return nil
	}

	if steps.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(steps.Workers)
		for i := range jobs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return eval(i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := eval(i); err != nil {
				return nil, err
			}
		}
	}

	grad := make(Gradient, len(ids))
	for i, job := range jobs {
		p := grad[job.id]
		p.set(job.param, partials[i])
		grad[job.id] = p
	}
	return grad, nil
}

func (s Steps) stepFor(p Param) float64 {
	if p == ParamWeight {
		return s.Weight
	}
	return s.XY
}

func (s Steps) denominatorFor(p Param) float64 {
	if p == ParamWeight && !WeightGradientUsesXYStep {
		return s.Weight
	}
	return s.XY
}
