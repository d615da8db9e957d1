package placement

import (
	"log/slog"
	"math"
)

// ConvergenceConfig controls early stopping on the snapshot score history
type ConvergenceConfig struct {
	// Enabled turns early stopping on; a disabled tracker never reports convergence
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Patience is the number of consecutive recorded scores without a
	// significant improvement before stopping
	Patience int `yaml:"patience" json:"patience" validate:"gte=0"`

	// Threshold is the minimum relative improvement,
	// (lastSignificant - score) / lastSignificant, that counts as progress
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gte=0"`
}

// DefaultConvergenceConfig returns an enabled config with moderate settings
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.001,
	}
}

// ConvergenceTracker records scores and reports when descent has stalled
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a score and returns true once the run has converged
func (c *ConvergenceTracker) Update(score float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.history = append(c.history, score)
	if score < c.best {
		c.best = score
	}

	if len(c.history) == 1 {
		c.lastSignificant = score
		return false
	}

	improvement := (c.lastSignificant - score) / math.Abs(c.lastSignificant)
	if c.lastSignificant == 0 {
		improvement = 0
	}

	if improvement >= c.config.Threshold && improvement > 0 {
		c.lastSignificant = score
		c.staleCount = 0
		return false
	}

	c.staleCount++
	slog.Debug("No significant score improvement",
		"score", score,
		"last_significant", c.lastSignificant,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected, stopping early",
			"stale_count", c.staleCount,
			"best_score", c.best,
		)
		return true
	}
	return false
}

// Best returns the lowest score recorded
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns a copy of the recorded scores
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the number of recorded scores since the last improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}
