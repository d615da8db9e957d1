package placement

import "fmt"

// Sentinels for errors.Is matching.
var (
	ErrConfig           = &ConfigError{}
	ErrDegenerateWeight = &DegenerateWeightError{}
	ErrDataShape        = &DataShapeError{}
)

// ConfigError reports an invalid run setup: unknown method, non-positive
// max_iter, an optimizable station missing from the configuration.
// It is always raised before any iteration runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration error"
	}
	return "configuration error: " + e.Field + " " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// DegenerateWeightError reports a station weight that is zero, negative or
// non-finite, or a score that came out non-finite.
// Iteration is -1 when the fault was found outside the descent loop.
type DegenerateWeightError struct {
	StationID string
	Weight    float64
	Iteration int
}

func (e *DegenerateWeightError) Error() string {
	msg := "degenerate weight"
	if e.StationID != "" {
		msg += fmt.Sprintf(": station %s has weight %g", e.StationID, e.Weight)
	}
	if e.Iteration >= 0 {
		msg += fmt.Sprintf(" (iteration %d)", e.Iteration)
	}
	return msg
}

func (e *DegenerateWeightError) Is(target error) bool {
	_, ok := target.(*DegenerateWeightError)
	return ok
}

// DataShapeError reports a zone source or station profile with missing or
// malformed fields.
type DataShapeError struct {
	Source string
	Field  string
	Reason string
}

func (e *DataShapeError) Error() string {
	msg := "data shape error"
	if e.Source != "" {
		msg += ": " + e.Source
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	return msg
}

func (e *DataShapeError) Is(target error) bool {
	_, ok := target.(*DataShapeError)
	return ok
}
