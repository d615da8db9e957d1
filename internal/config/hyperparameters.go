package config

import (
	"log/slog"

	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/search"
)

type convergenceDoc struct {
	Enabled   bool    `yaml:"enabled"`
	Patience  int     `yaml:"patience" validate:"gte=0"`
	Threshold float64 `yaml:"threshold" validate:"gte=0,finite"`
}

type methodDoc struct {
	MaxIter      *int            `yaml:"max_iter" validate:"required,gt=0"`
	LearningRate *float64        `yaml:"learning_rate" validate:"omitempty,gte=0,finite"`
	DXY          *float64        `yaml:"dxy" validate:"omitempty,gt=0,finite"`
	DW           *float64        `yaml:"dw" validate:"omitempty,gte=0,finite"`
	MinWeight    float64         `yaml:"min_weight" validate:"gte=0,finite"`
	Workers      int             `yaml:"workers" validate:"gte=0"`
	Convergence  *convergenceDoc `yaml:"convergence"`
}

// LoadHyperparameters reads the settings of one method from a document keyed
// by method name ("GD", "SA"). Gradient descent additionally requires
// learning_rate, dxy and dw.
func LoadHyperparameters(path string, method search.Method) (search.Hyperparameters, error) {
	method, err := search.ParseMethod(string(method))
	if err != nil {
		return search.Hyperparameters{}, err
	}

	var doc map[string]methodDoc
	if err := readDocument(path, &doc); err != nil {
		return search.Hyperparameters{}, err
	}

	m, ok := doc[string(method)]
	if !ok {
		return search.Hyperparameters{}, &placement.DataShapeError{Source: path, Field: string(method), Reason: "method settings not found"}
	}
	prefix := string(method) + "."
	if err := checkStruct(path, prefix, m); err != nil {
		return search.Hyperparameters{}, err
	}

	h := search.Hyperparameters{
		MaxIter:   *m.MaxIter,
		MinWeight: m.MinWeight,
		Workers:   m.Workers,
	}

	if method == search.MethodGD {
		required := []struct {
			field string
			value *float64
		}{{"learning_rate", m.LearningRate}, {"dxy", m.DXY}, {"dw", m.DW}}
		for _, r := range required {
			if r.value == nil {
				return search.Hyperparameters{}, &placement.DataShapeError{Source: path, Field: prefix + r.field, Reason: "missing"}
			}
		}
		h.LearningRate = *m.LearningRate
		h.DXY = *m.DXY
		h.DW = *m.DW
	}

	if m.Convergence != nil {
		if err := checkStruct(path, prefix+"convergence.", *m.Convergence); err != nil {
			return search.Hyperparameters{}, err
		}
		// Omitted tuning fields keep their defaults
		conv := placement.DefaultConvergenceConfig()
		conv.Enabled = m.Convergence.Enabled
		if m.Convergence.Patience > 0 {
			conv.Patience = m.Convergence.Patience
		}
		if m.Convergence.Threshold > 0 {
			conv.Threshold = m.Convergence.Threshold
		}
		h.Convergence = conv
	}

	if err := h.Validate(method); err != nil {
		return search.Hyperparameters{}, err
	}

	slog.Debug("Loaded hyperparameters", "path", path, "method", method, "max_iter", h.MaxIter)
	return h, nil
}
