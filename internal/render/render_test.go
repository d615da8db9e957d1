package render

import (
	"image/png"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/store"
)

func testField(t *testing.T) *placement.CostField {
	t.Helper()
	field, err := placement.NewCostField([]placement.Zone{
		{ID: "a", Population: 1, X: 0, Y: 0},
		{ID: "b", Population: 2, X: 10, Y: 0},
		{ID: "c", Population: 3, X: 5, Y: 10},
	})
	require.NoError(t, err)
	return field
}

func TestRenderWritesPNG(t *testing.T) {
	fs, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	field := testField(t)
	cfg := placement.Configuration{
		"s1": {XCoord: 1, YCoord: 1, Weight: 1},
		"s2": {XCoord: 8, YCoord: 6, Weight: 3},
	}
	_, err = field.Evaluate(cfg)
	require.NoError(t, err)

	r := NewPlotRenderer(fs).WithSize(200, 200)
	name, err := r.Render(field, cfg, 40)
	require.NoError(t, err)
	require.Equal(t, "iter_40.png", name)

	f, err := os.Open(fs.Path(name))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.DecodeConfig(f)
	require.NoError(t, err)
	require.Greater(t, img.Width, 0)
	require.Greater(t, img.Height, 0)
}

func TestRenderBeforeEvaluate(t *testing.T) {
	fs, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	// No cost column yet, zones are drawn unshaded
	name, err := NewPlotRenderer(fs).WithSize(100, 100).Render(testField(t), placement.Configuration{"s": {Weight: 1}}, 0)
	require.NoError(t, err)
	require.Equal(t, "iter_0.png", name)
}

func TestBaseMap(t *testing.T) {
	fs, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)

	name, err := NewPlotRenderer(fs).WithSize(100, 100).BaseMap(testField(t))
	require.NoError(t, err)
	require.Equal(t, BaseMapName, name)

	infos, err := fs.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, -1, infos[0].Iteration)
}

func TestShade(t *testing.T) {
	require.Equal(t, uint8(255), Shade(0).G)
	require.Equal(t, uint8(0), Shade(1).G)
	require.Equal(t, uint8(255), Shade(1).R)
	require.Equal(t, Shade(1), Shade(7))
	require.Equal(t, Shade(0), Shade(-2))
	require.Equal(t, Shade(0), Shade(math.NaN()))

	mid := Shade(0.5)
	require.Less(t, mid.G, Shade(0.25).G)
	require.Greater(t, mid.G, Shade(0.75).G)
}

func TestStationRadius(t *testing.T) {
	require.Equal(t, maxStation, StationRadius(4, 4))
	require.Equal(t, minStation, StationRadius(0.01, 4))
	require.Equal(t, minStation, StationRadius(1, 0))
	require.Less(t, StationRadius(2, 4), StationRadius(3, 4))
}
