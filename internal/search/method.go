package search

import (
	"strings"

	"github.com/cwbudde/gridopt/internal/placement"
)

// Method selects the optimization driver
type Method string

const (
	MethodGD Method = "GD" // Gradient descent
	MethodSA Method = "SA" // Simulated annealing (skeleton)
)

// ParseMethod accepts "GD" or "SA" (case-insensitive)
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodGD:
		return MethodGD, nil
	case MethodSA:
		return MethodSA, nil
	}
	return "", &placement.ConfigError{Field: "method", Reason: "unknown optimization method " + s}
}

// Hyperparameters configures one driver instance. It is copied into the
// driver at construction and never changed afterwards.
type Hyperparameters struct {
	MaxIter      int     `yaml:"max_iter" json:"max_iter"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	DXY          float64 `yaml:"dxy" json:"dxy"` // Finite-difference step for x/y, also the denominator
	DW           float64 `yaml:"dw" json:"dw"`   // Finite-difference step for weight; 0 holds weights fixed

	// MinWeight > 0 clamps weights at this floor instead of failing the run
	MinWeight float64 `yaml:"min_weight,omitempty" json:"min_weight,omitempty"`

	// Workers > 1 evaluates gradient perturbations concurrently
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	Convergence placement.ConvergenceConfig `yaml:"convergence,omitempty" json:"convergence,omitempty"`
}

// Validate checks the settings needed by method
func (h Hyperparameters) Validate(method Method) error {
	if h.MaxIter <= 0 {
		return &placement.ConfigError{Field: "max_iter", Reason: "must be positive"}
	}
	if h.MinWeight < 0 {
		return &placement.ConfigError{Field: "min_weight", Reason: "cannot be negative"}
	}
	if method != MethodGD {
		return nil
	}
	if h.DXY <= 0 {
		return &placement.ConfigError{Field: "dxy", Reason: "must be positive"}
	}
	if h.DW < 0 {
		return &placement.ConfigError{Field: "dw", Reason: "cannot be negative"}
	}
	if h.LearningRate < 0 {
		return &placement.ConfigError{Field: "learning_rate", Reason: "cannot be negative"}
	}
	return nil
}

// Cadence returns the snapshot interval for maxIter: one tenth of the run,
// never less than every iteration.
func Cadence(maxIter int) int {
	if c := maxIter / 10; c > 1 {
		return c
	}
	return 1
}
