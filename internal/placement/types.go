package placement

import (
	"fmt"
	"math"
	"sort"
)

// Zone is one row of the zone table: a geographic unit with a population and
// a centroid in projected-plane coordinates.
type Zone struct {
	ID         string  `json:"id"`
	Population int     `json:"population"`
	X          float64 `json:"x"` // Centroid
	Y          float64 `json:"y"`
}

// NormalizePopulation clamps sentinel codes (e.g. -99) and zero to 1.
func NormalizePopulation(pop int) int {
	if pop < 1 {
		return 1
	}
	return pop
}

// Param names one tunable parameter of a station
type Param int

const (
	ParamX Param = iota
	ParamY
	ParamWeight
)

// Params lists every station parameter in update order
var Params = []Param{ParamX, ParamY, ParamWeight}

func (p Param) String() string {
	switch p {
	case ParamX:
		return "x_coord"
	case ParamY:
		return "y_coord"
	case ParamWeight:
		return "weight"
	default:
		return fmt.Sprintf("param(%d)", int(p))
	}
}

// Station holds the parameters of a single facility.
// Weight scales the service reach and is used as a divisor in the cost.
type Station struct {
	XCoord float64 `json:"x_coord" yaml:"x_coord"`
	YCoord float64 `json:"y_coord" yaml:"y_coord"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Get reads parameter p
func (s Station) Get(p Param) float64 {
	switch p {
	case ParamX:
		return s.XCoord
	case ParamY:
		return s.YCoord
	case ParamWeight:
		return s.Weight
	}
	panic("unknown station parameter: " + p.String())
}

// Set writes parameter p
func (s *Station) Set(p Param, v float64) {
	switch p {
	case ParamX:
		s.XCoord = v
	case ParamY:
		s.YCoord = v
	case ParamWeight:
		s.Weight = v
	default:
		panic("unknown station parameter: " + p.String())
	}
}

// Configuration maps station id to its parameters.
type Configuration map[string]Station

// Clone returns an independent copy. Station is a value type so a shallow
// map copy is already deep.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for id, s := range c {
		out[id] = s
	}
	return out
}

// IDs returns the station ids in sorted order
func (c Configuration) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the configuration can be evaluated.
func (c Configuration) Validate() error {
	if len(c) == 0 {
		return &ConfigError{Field: "stations", Reason: "configuration has no stations"}
	}
	for _, id := range c.IDs() {
		if err := checkWeight(id, c[id].Weight); err != nil {
			return err
		}
	}
	return nil
}

func checkWeight(id string, w float64) error {
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return &DegenerateWeightError{StationID: id, Weight: w, Iteration: -1}
	}
	return nil
}

// ResolveOptimizable returns the optimizable set for cfg. An empty ids list
// means every station is tunable. Duplicates are dropped and the result is sorted.
func ResolveOptimizable(cfg Configuration, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return cfg.IDs(), nil
	}

	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := cfg[id]; !ok {
			return nil, &ConfigError{Field: "optimizable", Reason: "station " + id + " is not in the configuration"}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Partials holds the partial derivatives of the score for one station
type Partials struct {
	X, Y, Weight float64
}

// Get reads the partial for parameter p
func (p Partials) Get(param Param) float64 {
	switch param {
	case ParamX:
		return p.X
	case ParamY:
		return p.Y
	case ParamWeight:
		return p.Weight
	}
	panic("unknown station parameter: " + param.String())
}

func (p *Partials) set(param Param, v float64) {
	switch param {
	case ParamX:
		p.X = v
	case ParamY:
		p.Y = v
	case ParamWeight:
		p.Weight = v
	}
}

// Gradient maps station id to its partial derivatives
type Gradient map[string]Partials

// Box is an axis-aligned bounding box
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the extent along x
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the extent along y
func (b Box) Height() float64 { return b.MaxY - b.MinY }
