package geo

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gridopt/internal/placement"
)

func writeShapefile(t *testing.T, pops []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zips.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.NumberField("POPULATION", 10),
		shp.StringField("ZIP_CODE", 5),
	}))

	for i, pop := range pops {
		x := float64(i * 10)
		square := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
			{X: x, Y: 0}, {X: x, Y: 2}, {X: x + 2, Y: 2}, {X: x + 2, Y: 0}, {X: x, Y: 0},
		}}))
		n := int(w.Write(&square))
		require.NoError(t, w.WriteAttribute(n, 0, pop))
		require.NoError(t, w.WriteAttribute(n, 1, "2290"+string(rune('0'+i))))
	}
	w.Close()

	// The writer names the attribute file "<base>dbf"; readers expect "<base>.dbf"
	base := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Failed to rename dbf: %v", err)
	}
	_, err = os.Stat(base + ".dbf")
	require.NoError(t, err)
	return path
}

func TestLoadShapefile(t *testing.T) {
	path := writeShapefile(t, []int{500, -99})

	zones, err := Load(path, Options{IDField: "ZIP_CODE"})
	require.NoError(t, err)
	require.Len(t, zones, 2)

	require.Equal(t, "22900", zones[0].ID)
	require.Equal(t, 500, zones[0].Population)
	require.InDelta(t, 1, zones[0].X, 1e-9)
	require.InDelta(t, 1, zones[0].Y, 1e-9)

	require.Equal(t, 1, zones[1].Population)
	require.InDelta(t, 11, zones[1].X, 1e-9)
}

func TestLoadShapefileMissingAttribute(t *testing.T) {
	path := writeShapefile(t, []int{1})

	_, err := LoadShapefile(path, Options{PopulationField: "POP2020"})
	require.ErrorIs(t, err, placement.ErrDataShape)

	_, err = LoadShapefile(path, Options{IDField: "GEOID"})
	require.ErrorIs(t, err, placement.ErrDataShape)
}

func TestParsePopulationPadding(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"500\x00\x00\x00\x00\x00\x00\x00", 500},
		{"  42  ", 42},
		{"\x00\x00-99", 1},
		{"12.6", 13},
	}
	for _, tt := range tests {
		got, err := parsePopulation(tt.raw)
		require.NoError(t, err, "raw %q", tt.raw)
		require.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestParsePopulationOutOfRange(t *testing.T) {
	for _, raw := range []string{"1e300", "-1e300", "NaN", "abc", "\x00\x00"} {
		_, err := parsePopulation(raw)
		require.Error(t, err, "raw %q", raw)
	}

	_, err := ReadCSV("zones.csv", strings.NewReader("id,population,x,y\na,1e300,0,0\n"))
	require.ErrorIs(t, err, placement.ErrDataShape)
}
