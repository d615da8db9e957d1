package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/cwbudde/gridopt/internal/placement"
)

// LoadShapefile reads polygons from a .shp file and attributes from its .dbf
func LoadShapefile(path string, opts Options) ([]placement.Zone, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer r.Close()

	popIdx, idIdx := -1, -1
	for i, f := range r.Fields() {
		name := attrValue(f.String())
		if strings.EqualFold(name, opts.populationField()) {
			popIdx = i
		}
		if opts.IDField != "" && strings.EqualFold(name, opts.IDField) {
			idIdx = i
		}
	}
	if popIdx < 0 {
		return nil, &placement.DataShapeError{Source: path, Field: opts.populationField(), Reason: "attribute not found"}
	}
	if opts.IDField != "" && idIdx < 0 {
		return nil, &placement.DataShapeError{Source: path, Field: opts.IDField, Reason: "attribute not found"}
	}

	var zones []placement.Zone
	for r.Next() {
		n, shape := r.Shape()

		geom, err := shapeGeometry(shape)
		if err != nil {
			return nil, &placement.DataShapeError{Source: path, Field: strconv.Itoa(n), Reason: err.Error()}
		}
		c, err := Centroid(geom)
		if err != nil {
			return nil, &placement.DataShapeError{Source: path, Field: strconv.Itoa(n), Reason: err.Error()}
		}

		pop, err := parsePopulation(r.ReadAttribute(n, popIdx))
		if err != nil {
			return nil, &placement.DataShapeError{Source: path, Field: opts.populationField(), Reason: fmt.Sprintf("row %d: %v", n, err)}
		}

		id := strconv.Itoa(n)
		if idIdx >= 0 {
			id = attrValue(r.ReadAttribute(n, idIdx))
		}
		zones = append(zones, placement.Zone{ID: id, Population: pop, X: c[0], Y: c[1]})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile: %w", err)
	}
	return zones, nil
}

// shapeGeometry converts a shapefile record into an orb geometry. Polygon
// parts with clockwise winding start a new polygon; the others are holes of
// the polygon before them.
func shapeGeometry(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case *shp.Polygon:
		return polygonParts(v.Parts, v.Points)
	case *shp.PolygonZ:
		return polygonParts(v.Parts, v.Points)
	case *shp.PolygonM:
		return polygonParts(v.Parts, v.Points)
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointM:
		return orb.Point{v.X, v.Y}, nil
	case *shp.Null, nil:
		return nil, fmt.Errorf("null shape")
	}
	return nil, fmt.Errorf("unsupported shape type %T", s)
}

func polygonParts(parts []int32, points []shp.Point) (orb.Geometry, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("empty polygon")
	}

	var mp orb.MultiPolygon
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			return nil, fmt.Errorf("corrupt part index")
		}

		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if len(ring) == 0 {
			continue
		}

		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
	}

	if len(mp) == 1 {
		return mp[0], nil
	}
	return mp, nil
}
