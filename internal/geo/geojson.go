package geo

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/cwbudde/gridopt/internal/placement"
)

// LoadGeoJSON reads a FeatureCollection with a numeric population property
func LoadGeoJSON(path string, opts Options) ([]placement.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}
	return ParseGeoJSON(path, data, opts)
}

// ParseGeoJSON converts raw GeoJSON bytes into zones; source names the data in errors
func ParseGeoJSON(source string, data []byte, opts Options) ([]placement.Zone, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &placement.DataShapeError{Source: source, Reason: "invalid feature collection: " + err.Error()}
	}

	field := opts.populationField()
	zones := make([]placement.Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		c, err := Centroid(f.Geometry)
		if err != nil {
			return nil, &placement.DataShapeError{Source: source, Field: strconv.Itoa(i), Reason: err.Error()}
		}

		raw, ok := f.Properties[field]
		if !ok {
			return nil, &placement.DataShapeError{Source: source, Field: field, Reason: fmt.Sprintf("feature %d has no population", i)}
		}
		pop, err := parsePopulation(fmt.Sprint(raw))
		if err != nil {
			return nil, &placement.DataShapeError{Source: source, Field: field, Reason: fmt.Sprintf("feature %d: %v", i, err)}
		}

		zones = append(zones, placement.Zone{
			ID:         featureID(f, i, opts.IDField),
			Population: pop,
			X:          c[0],
			Y:          c[1],
		})
	}
	return zones, nil
}

func featureID(f *geojson.Feature, i int, idField string) string {
	if idField != "" {
		if v, ok := f.Properties[idField]; ok {
			return fmt.Sprint(v)
		}
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return strconv.Itoa(i)
}
