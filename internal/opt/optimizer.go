package opt

// Objective is a cost function over a flat parameter vector; lower is better.
// Any func with this signature, mayfly.ObjectiveFunction included, is one.
type Objective = func(x []float64) float64

// Optimizer searches a box-bounded parameter space for a low-cost vector.
type Optimizer interface {
	// Run minimizes eval over [lower[i], upper[i]] for each of dim parameters
	// and returns the best vector and its cost.
	Run(eval Objective, lower, upper []float64, dim int) ([]float64, float64, error)
}
