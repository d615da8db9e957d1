// Package geo loads zone collections (shapefile, GeoJSON or CSV) and reduces
// each zone to the area-weighted centroid of its geometry.
package geo

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/cwbudde/gridopt/internal/placement"
)

// DefaultPopulationField is the attribute holding zone population
const DefaultPopulationField = "POPULATION"

// Options selects the attributes read from each feature
type Options struct {
	PopulationField string // Defaults to POPULATION
	IDField         string // Empty uses the feature index
}

func (o Options) populationField() string {
	if o.PopulationField == "" {
		return DefaultPopulationField
	}
	return o.PopulationField
}

// Load picks a reader by file extension
func Load(path string, opts Options) ([]placement.Zone, error) {
	var (
		zones []placement.Zone
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		zones, err = LoadShapefile(path, opts)
	case ".geojson", ".json":
		zones, err = LoadGeoJSON(path, opts)
	case ".csv":
		zones, err = LoadCSV(path)
	default:
		return nil, &placement.DataShapeError{Source: path, Reason: "unsupported zone file format"}
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded zones", "path", path, "count", len(zones))
	return zones, nil
}

// Centroid returns the area-weighted centroid of a geometry. Degenerate
// polygons fall back to the center of their bounds.
func Centroid(g orb.Geometry) (orb.Point, error) {
	if g == nil {
		return orb.Point{}, fmt.Errorf("missing geometry")
	}
	if p, ok := g.(orb.Point); ok {
		return p, nil
	}
	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		c = g.Bound().Center()
	}
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
		return orb.Point{}, fmt.Errorf("geometry has no centroid")
	}
	return c, nil
}

// attrValue strips the space and NUL padding of fixed-width DBF fields
func attrValue(raw string) string {
	return strings.Trim(raw, " \x00")
}

// parsePopulation reads a numeric attribute and clamps error codes like -99
func parsePopulation(raw string) (int, error) {
	v, err := strconv.ParseFloat(attrValue(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite")
	}
	v = math.Round(v)
	if v >= math.MaxInt || v < math.MinInt {
		return 0, fmt.Errorf("%g is out of range", v)
	}
	return placement.NormalizePopulation(int(v)), nil
}
