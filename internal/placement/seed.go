package placement

import (
	"log/slog"
	"math"

	"github.com/cwbudde/gridopt/internal/opt"
)

// SeedResult holds the output of an initial-placement search
type SeedResult struct {
	Configuration Configuration
	InitialScore  float64
	Score         float64
}

// SeedPlacement searches for starting positions of the stations in ids using
// a population-based optimizer over the zone bounding box. Weights and the
// stations outside ids are kept as they are. The search runs in normalized
// [0,1] coordinates because the optimizer takes one bound for every dimension.
func SeedPlacement(field *CostField, cfg Configuration, ids []string, optimizer opt.Optimizer) (*SeedResult, error) {
	ids, err := ResolveOptimizable(cfg, ids)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	initialScore, err := field.Score(cfg)
	if err != nil {
		return nil, err
	}

	box := field.Bounds()
	dim := 2 * len(ids)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range upper {
		upper[i] = 1
	}

	decode := func(x []float64) Configuration {
		out := cfg.Clone()
		for i, id := range ids {
			s := out[id]
			s.XCoord, s.YCoord = box.Unit(x[2*i], x[2*i+1])
			out[id] = s
		}
		return out
	}

	slog.Info("Starting placement search", "stations", len(ids), "initial_score", initialScore)

	eval := func(x []float64) float64 {
		score, err := field.Score(decode(x))
		if err != nil {
			return math.Inf(1)
		}
		return score
	}

	best, _, err := optimizer.Run(eval, lower, upper, dim)
	if err != nil {
		return nil, err
	}

	seeded := decode(best)
	score, err := field.Score(seeded)
	if err != nil {
		return nil, err
	}

	// Keep the input when the search could not beat it
	if score > initialScore {
		seeded, score = cfg.Clone(), initialScore
	}

	slog.Info("Placement search complete", "initial_score", initialScore, "score", score)

	return &SeedResult{
		Configuration: seeded,
		InitialScore:  initialScore,
		Score:         score,
	}, nil
}
