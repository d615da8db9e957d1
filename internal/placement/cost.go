package placement

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Objective scores a station configuration; lower is better.
type Objective interface {
	Score(cfg Configuration) (float64, error)
}

// CostField holds the zone table and the derived cost column of the most
// recent evaluation.
//
// The zone slice is never mutated and may be shared between forks. The derived
// min-cost column belongs to one field and must not be shared between
// concurrent runs; use Fork to get a run-local field.
type CostField struct {
	zones   []Zone
	minCost []float64
	scratch []float64 // Evaluate writes here and swaps on success
	score   float64
}

// NewCostField creates a cost field over the given zones
func NewCostField(zones []Zone) (*CostField, error) {
	if len(zones) == 0 {
		return nil, &DataShapeError{Source: "zones", Reason: "zone collection is empty"}
	}
	for _, z := range zones {
		if math.IsNaN(z.X) || math.IsNaN(z.Y) || math.IsInf(z.X, 0) || math.IsInf(z.Y, 0) {
			return nil, &DataShapeError{Source: "zones", Field: z.ID, Reason: "centroid is not finite"}
		}
	}
	return &CostField{zones: zones}, nil
}

// Fork returns a field sharing the zone table with fresh derived state
func (f *CostField) Fork() *CostField {
	return &CostField{zones: f.zones}
}

// Zones returns the zone table. Callers must not modify it.
func (f *CostField) Zones() []Zone {
	return f.zones
}

// Evaluate computes the mean per-zone minimum cost of cfg and keeps the
// per-zone column for rendering. A failed evaluation leaves the column and
// score of the previous successful call in place.
func (f *CostField) Evaluate(cfg Configuration) (float64, error) {
	if cap(f.scratch) < len(f.zones) {
		f.scratch = make([]float64, len(f.zones))
	}
	col := f.scratch[:len(f.zones)]

	score, err := evaluate(f.zones, cfg, col)
	if err != nil {
		return 0, err
	}
	f.minCost, f.scratch = col, f.minCost
	f.score = score
	return score, nil
}

// Score computes the same objective as Evaluate without touching the
// derived state, so it is safe for concurrent use.
func (f *CostField) Score(cfg Configuration) (float64, error) {
	return evaluate(f.zones, cfg, make([]float64, len(f.zones)))
}

// MinCost returns a copy of the per-zone minimum cost of the last evaluation.
// It is nil before the first successful Evaluate.
func (f *CostField) MinCost() []float64 {
	if f.minCost == nil {
		return nil
	}
	return append([]float64{}, f.minCost...)
}

// LastScore returns the score of the last successful Evaluate
func (f *CostField) LastScore() float64 {
	return f.score
}

// Bounds returns the bounding box of the zone centroids
func (f *CostField) Bounds() Box {
	xs := make([]float64, len(f.zones))
	ys := make([]float64, len(f.zones))
	for i, z := range f.zones {
		xs[i] = z.X
		ys[i] = z.Y
	}
	return Box{
		MinX: floats.Min(xs),
		MinY: floats.Min(ys),
		MaxX: floats.Max(xs),
		MaxY: floats.Max(ys),
	}
}

// evaluate fills col with each zone's cheapest station cost and returns the mean.
func evaluate(zones []Zone, cfg Configuration, col []float64) (float64, error) {
	if len(cfg) == 0 {
		return 0, &ConfigError{Field: "stations", Reason: "configuration has no stations"}
	}

	// Weights are checked before any division
	ids := cfg.IDs()
	for _, id := range ids {
		if err := checkWeight(id, cfg[id].Weight); err != nil {
			return 0, err
		}
	}

	for i := range col {
		col[i] = math.Inf(1)
	}

	for _, id := range ids {
		s := cfg[id]
		for i, z := range zones {
			c := float64(z.Population) * math.Hypot(z.X-s.XCoord, z.Y-s.YCoord) / s.Weight
			if c < col[i] {
				col[i] = c
			}
		}
	}

	score := stat.Mean(col, nil)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, &DegenerateWeightError{Iteration: -1}
	}
	return score, nil
}
