package placement

import (
	"errors"
	"testing"

	"github.com/cwbudde/gridopt/internal/opt"
	"github.com/stretchr/testify/require"
)

// gridSearch evaluates a regular grid over the unit box; dim must be 2.
type gridSearch struct {
	steps int
}

func (g gridSearch) Run(eval opt.Objective, lower, upper []float64, dim int) ([]float64, float64, error) {
	if dim != 2 {
		return nil, 0, errors.New("grid search supports two dimensions")
	}
	var best []float64
	bestCost := 0.0
	for i := 0; i <= g.steps; i++ {
		for j := 0; j <= g.steps; j++ {
			x := []float64{float64(i) / float64(g.steps), float64(j) / float64(g.steps)}
			if c := eval(x); best == nil || c < bestCost {
				best, bestCost = x, c
			}
		}
	}
	return best, bestCost, nil
}

type failingSearch struct{}

func (failingSearch) Run(opt.Objective, []float64, []float64, int) ([]float64, float64, error) {
	return nil, 0, errors.New("search failed")
}

func TestSeedPlacementImprovesScore(t *testing.T) {
	field := newField(t, triangleZones())
	cfg := Configuration{
		"fixed": {XCoord: 100, YCoord: 100, Weight: 1},
		"new":   {XCoord: 100, YCoord: -100, Weight: 2},
	}

	result, err := SeedPlacement(field, cfg, []string{"new"}, gridSearch{steps: 20})
	require.NoError(t, err)
	require.Less(t, result.Score, result.InitialScore)

	// Fixed station and weights untouched
	require.Equal(t, cfg["fixed"], result.Configuration["fixed"])
	require.Equal(t, 2.0, result.Configuration["new"].Weight)

	// Seeded inside the zone bounding box
	s := result.Configuration["new"]
	require.GreaterOrEqual(t, s.XCoord, 0.0)
	require.LessOrEqual(t, s.XCoord, 10.0)
	require.GreaterOrEqual(t, s.YCoord, 0.0)
	require.LessOrEqual(t, s.YCoord, 10.0)

	// Input untouched
	require.Equal(t, 100.0, cfg["new"].XCoord)
}

func TestSeedPlacementKeepsBetterInput(t *testing.T) {
	field := newField(t, []Zone{{ID: "z", Population: 1, X: 0, Y: 0}, {ID: "w", Population: 1, X: 1, Y: 1}})
	cfg := Configuration{"s": {XCoord: 0.5, YCoord: 0.5, Weight: 1}}

	// A coarse grid can only land on corners or the center of the box
	result, err := SeedPlacement(field, cfg, nil, gridSearch{steps: 1})
	require.NoError(t, err)
	require.LessOrEqual(t, result.Score, result.InitialScore)
}

func TestSeedPlacementErrors(t *testing.T) {
	field := newField(t, triangleZones())

	_, err := SeedPlacement(field, Configuration{"s": {Weight: 1}}, []string{"nope"}, gridSearch{steps: 2})
	require.ErrorIs(t, err, ErrConfig)

	_, err = SeedPlacement(field, Configuration{"s": {Weight: 0}}, nil, gridSearch{steps: 2})
	require.ErrorIs(t, err, ErrDegenerateWeight)

	_, err = SeedPlacement(field, Configuration{"s": {Weight: 1}}, nil, failingSearch{})
	require.Error(t, err)
}

func TestSeedPlacementWithMayfly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mayfly search in short mode")
	}
	field := newField(t, triangleZones())
	cfg := Configuration{"s": {XCoord: -50, YCoord: -50, Weight: 1}}

	result, err := SeedPlacement(field, cfg, nil, opt.NewMayfly(30, 20, 7))
	require.NoError(t, err)
	require.Less(t, result.Score, result.InitialScore)
}
