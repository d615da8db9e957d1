package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/search"
)

const gridJSON = `{
  "baseline": {
    "north": {"x_coord": 10.5, "y_coord": 20, "weight": 1},
    "south": {"x_coord": -3, "y_coord": 0, "weight": 2.5}
  },
  "broken": {
    "east": {"x_coord": 1, "weight": 1}
  },
  "empty": {}
}`

const modelYAML = `
GD:
  max_iter: 200
  learning_rate: 0.1
  dxy: 0.01
  dw: 0
  workers: 4
  convergence:
    enabled: true
    patience: 3
    threshold: 0.001
SA:
  max_iter: 50
GD_missing:
  max_iter: 10
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeFile(t, "grid_config.json", gridJSON)

	cfg, err := LoadProfile(path, "baseline")
	require.NoError(t, err)
	require.Equal(t, placement.Configuration{
		"north": {XCoord: 10.5, YCoord: 20, Weight: 1},
		"south": {XCoord: -3, YCoord: 0, Weight: 2.5},
	}, cfg)
}

func TestLoadProfileErrors(t *testing.T) {
	path := writeFile(t, "grid_config.json", gridJSON)

	tests := []struct {
		name    string
		path    string
		profile string
	}{
		{"unknown profile", path, "future"},
		{"missing field", path, "broken"},
		{"no stations", path, "empty"},
		{"malformed", writeFile(t, "bad.yaml", "baseline: [1, 2"), "baseline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(tt.path, tt.profile)
			require.ErrorIs(t, err, placement.ErrDataShape)
		})
	}

	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.json"), "baseline")
	require.Error(t, err)
}

func TestLoadProfileMissingFieldNamed(t *testing.T) {
	path := writeFile(t, "grid_config.json", gridJSON)

	_, err := LoadProfile(path, "broken")
	var de *placement.DataShapeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "broken.east.y_coord", de.Field)
}

func TestListProfiles(t *testing.T) {
	names, err := ListProfiles(writeFile(t, "grid_config.json", gridJSON))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"baseline", "broken", "empty"}, names)
}

func TestLoadHyperparameters(t *testing.T) {
	path := writeFile(t, "model_config.yaml", modelYAML)

	gd, err := LoadHyperparameters(path, search.MethodGD)
	require.NoError(t, err)
	require.Equal(t, 200, gd.MaxIter)
	require.Equal(t, 0.1, gd.LearningRate)
	require.Equal(t, 0.01, gd.DXY)
	require.Equal(t, 0.0, gd.DW)
	require.Equal(t, 4, gd.Workers)
	require.True(t, gd.Convergence.Enabled)
	require.Equal(t, 3, gd.Convergence.Patience)

	sa, err := LoadHyperparameters(path, "sa")
	require.NoError(t, err)
	require.Equal(t, 50, sa.MaxIter)
	require.Zero(t, sa.LearningRate)
}

func TestLoadHyperparametersConvergenceDefaults(t *testing.T) {
	path := writeFile(t, "model.yaml", `
GD:
  max_iter: 100
  learning_rate: 0.1
  dxy: 0.01
  dw: 0
  convergence:
    enabled: true
    patience: 8
`)

	gd, err := LoadHyperparameters(path, search.MethodGD)
	require.NoError(t, err)
	require.True(t, gd.Convergence.Enabled)
	require.Equal(t, 8, gd.Convergence.Patience)
	require.Equal(t, placement.DefaultConvergenceConfig().Threshold, gd.Convergence.Threshold)
}

func TestLoadHyperparametersErrors(t *testing.T) {
	t.Run("unknown method", func(t *testing.T) {
		path := writeFile(t, "m.yaml", modelYAML)
		_, err := LoadHyperparameters(path, "PSO")
		require.ErrorIs(t, err, placement.ErrConfig)
	})

	t.Run("method missing from document", func(t *testing.T) {
		path := writeFile(t, "m.yaml", "SA:\n  max_iter: 5\n")
		_, err := LoadHyperparameters(path, search.MethodGD)
		require.ErrorIs(t, err, placement.ErrDataShape)
	})

	t.Run("gd field missing", func(t *testing.T) {
		path := writeFile(t, "m.yaml", "GD:\n  max_iter: 5\n  learning_rate: 0.1\n  dw: 0\n")
		_, err := LoadHyperparameters(path, search.MethodGD)
		var de *placement.DataShapeError
		require.ErrorAs(t, err, &de)
		require.Equal(t, "GD.dxy", de.Field)
	})

	t.Run("max_iter missing", func(t *testing.T) {
		path := writeFile(t, "m.yaml", "SA:\n  workers: 2\n")
		_, err := LoadHyperparameters(path, search.MethodSA)
		require.ErrorIs(t, err, placement.ErrDataShape)
	})

	t.Run("out of range", func(t *testing.T) {
		path := writeFile(t, "m.yaml", "GD:\n  max_iter: 0\n  learning_rate: 0.1\n  dxy: 0.01\n  dw: 0\n")
		_, err := LoadHyperparameters(path, search.MethodGD)
		require.ErrorIs(t, err, placement.ErrConfig)
	})

	t.Run("negative step", func(t *testing.T) {
		path := writeFile(t, "m.yaml", "GD:\n  max_iter: 3\n  learning_rate: 0.1\n  dxy: -1\n  dw: 0\n")
		_, err := LoadHyperparameters(path, search.MethodGD)
		require.ErrorIs(t, err, placement.ErrConfig)
	})
}

func TestSaveProfile(t *testing.T) {
	for _, name := range []string{"grid_config.json", "grid_config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, gridJSON)

			optimized := placement.Configuration{
				"north": {XCoord: 11, YCoord: 19.5, Weight: 1},
				"south": {XCoord: -2, YCoord: 1, Weight: 2.5},
			}
			require.NoError(t, SaveProfile(path, "optimized", optimized))

			got, err := LoadProfile(path, "optimized")
			require.NoError(t, err)
			require.Equal(t, optimized, got)

			// Other profiles survive
			base, err := LoadProfile(path, "baseline")
			require.NoError(t, err)
			require.Len(t, base, 2)

			_, err = os.Stat(path + ".tmp")
			require.True(t, os.IsNotExist(err))
		})
	}
}

func TestSaveProfileNewDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "profiles.yaml")
	cfg := placement.Configuration{"a": {XCoord: 1, YCoord: 2, Weight: 3}}

	require.NoError(t, SaveProfile(path, "run1", cfg))
	got, err := LoadProfile(path, "run1")
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestSaveProfileRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")

	err := SaveProfile(path, "", placement.Configuration{"a": {Weight: 1}})
	require.ErrorIs(t, err, placement.ErrConfig)

	err = SaveProfile(path, "x", placement.Configuration{"a": {Weight: 0}})
	require.ErrorIs(t, err, placement.ErrDegenerateWeight)
}
