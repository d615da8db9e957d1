package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

func toShp(pts []orb.Point) []shp.Point {
	out := make([]shp.Point, len(pts))
	for i, p := range pts {
		out[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return out
}
