package placement

import "math"

// WeightBounds guards station weights after a descent step.
//
// With MinWeight == 0 (the default) a step that leaves a weight at or below
// zero is a fault. With MinWeight > 0 the weight is clamped to the floor
// instead.
type WeightBounds struct {
	MinWeight float64
}

// Apply checks or clamps the weight of station id after an update
func (b WeightBounds) Apply(id string, s Station, iteration int) (Station, error) {
	if b.MinWeight > 0 && !math.IsNaN(s.Weight) && !math.IsInf(s.Weight, 1) {
		s.Weight = clamp(s.Weight, b.MinWeight, math.Inf(1))
		return s, nil
	}
	if err := checkWeight(id, s.Weight); err != nil {
		return s, &DegenerateWeightError{StationID: id, Weight: s.Weight, Iteration: iteration}
	}
	return s, nil
}

// Unit maps a normalized coordinate in [0,1] into the box
func (b Box) Unit(u, v float64) (x, y float64) {
	u = clamp(u, 0, 1)
	v = clamp(v, 0, 1)
	return b.MinX + u*b.Width(), b.MinY + v*b.Height()
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
