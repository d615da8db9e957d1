package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/gridopt/internal/placement"
)

var csvColumns = []string{"id", "population", "x", "y"}

// LoadCSV reads zones that are already reduced to centroids
func LoadCSV(path string) ([]placement.Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zone csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(path, f)
}

// ReadCSV parses an id,population,x,y table. Columns are matched by header
// name, so their order is free.
func ReadCSV(source string, r io.Reader) ([]placement.Zone, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &placement.DataShapeError{Source: source, Reason: "missing header"}
	} else if err != nil {
		return nil, &placement.DataShapeError{Source: source, Reason: err.Error()}
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, &placement.DataShapeError{Source: source, Field: c, Reason: "column not found"}
		}
	}

	var zones []placement.Zone
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, &placement.DataShapeError{Source: source, Reason: err.Error()}
		}

		pop, err := parsePopulation(rec[idx["population"]])
		if err != nil {
			return nil, &placement.DataShapeError{Source: source, Field: "population", Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["x"]]), 64)
		if err != nil {
			return nil, &placement.DataShapeError{Source: source, Field: "x", Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["y"]]), 64)
		if err != nil {
			return nil, &placement.DataShapeError{Source: source, Field: "y", Reason: fmt.Sprintf("line %d: %v", line, err)}
		}

		zones = append(zones, placement.Zone{ID: rec[idx["id"]], Population: pop, X: x, Y: y})
	}
	return zones, nil
}
