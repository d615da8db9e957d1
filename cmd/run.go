package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gridopt/internal/config"
	"github.com/cwbudde/gridopt/internal/geo"
	"github.com/cwbudde/gridopt/internal/opt"
	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/render"
	"github.com/cwbudde/gridopt/internal/search"
	"github.com/cwbudde/gridopt/internal/store"
)

// runOptions holds the flags of the run command
type runOptions struct {
	zonesPath       string
	populationField string
	idField         string
	profilesPath    string
	profile         string
	modelsPath      string
	method          string
	ids             []string
	maxIter         int
	workers         int
	minWeight       float64
	outDir          string
	noSnapshots     bool
	baseMap         bool
	seedSearch      bool
	seedIters       int
	seedPop         int
	seed            int64
	saveProfile     string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Loads the zone map, a station profile and the method settings, then
optimizes the station placement. Progress is printed at every snapshot and
the final configuration is shown as a table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runOptimization(ctx, cmd.OutOrStdout(), runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.zonesPath, "zones", "", "Zone map (.shp, .geojson or .csv)")
	f.StringVar(&runOpts.populationField, "population-field", geo.DefaultPopulationField, "Zone attribute holding the population")
	f.StringVar(&runOpts.idField, "id-field", "", "Zone attribute used as id (default: feature index)")
	f.StringVar(&runOpts.profilesPath, "profiles", "config/grid_config.json", "Station profile document")
	f.StringVar(&runOpts.profile, "profile", "baseline", "Profile name inside the profile document")
	f.StringVar(&runOpts.modelsPath, "models", "config/model_config.json", "Method settings document")
	f.StringVar(&runOpts.method, "method", string(search.MethodGD), "Optimization method: GD or SA")
	f.StringSliceVar(&runOpts.ids, "ids", nil, "Stations to optimize (default: all)")
	f.IntVar(&runOpts.maxIter, "max-iter", 0, "Override max_iter from the settings document")
	f.IntVar(&runOpts.workers, "workers", 0, "Override gradient workers from the settings document")
	f.Float64Var(&runOpts.minWeight, "min-weight", 0, "Clamp weights at this floor instead of failing")
	f.StringVar(&runOpts.outDir, "out", "outputs", "Snapshot output directory (cleared on start)")
	f.BoolVar(&runOpts.noSnapshots, "no-snapshots", false, "Skip snapshot images")
	f.BoolVar(&runOpts.baseMap, "base-map", false, "Also render the population map")
	f.BoolVar(&runOpts.seedSearch, "seed-search", false, "Search starting positions with mayfly before descending")
	f.IntVar(&runOpts.seedIters, "seed-iters", 100, "Mayfly iterations for --seed-search")
	f.IntVar(&runOpts.seedPop, "seed-pop", opt.MinPopulation, "Mayfly population for --seed-search")
	f.Int64Var(&runOpts.seed, "seed", 42, "Random seed for --seed-search")
	f.StringVar(&runOpts.saveProfile, "save-profile", "", "Write the result back to the profile document under this name")

	runCmd.MarkFlagRequired("zones")
	rootCmd.AddCommand(runCmd)
}

func runOptimization(ctx context.Context, out io.Writer, o runOptions) error {
	method, err := search.ParseMethod(o.method)
	if err != nil {
		return err
	}

	zones, err := geo.Load(o.zonesPath, geo.Options{PopulationField: o.populationField, IDField: o.idField})
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}
	field, err := placement.NewCostField(zones)
	if err != nil {
		return err
	}

	cfg, err := config.LoadProfile(o.profilesPath, o.profile)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	params, err := config.LoadHyperparameters(o.modelsPath, method)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if o.maxIter > 0 {
		params.MaxIter = o.maxIter
	}
	if o.workers > 0 {
		params.Workers = o.workers
	}
	if o.minWeight > 0 {
		params.MinWeight = o.minWeight
	}

	if o.seedSearch {
		res, err := placement.SeedPlacement(field, cfg, o.ids, opt.NewMayfly(o.seedIters, o.seedPop, o.seed))
		if err != nil {
			return fmt.Errorf("placement search failed: %w", err)
		}
		fmt.Fprintf(out, "seed search: %.4f -> %.4f\n", res.InitialScore, res.Score)
		cfg = res.Configuration
	}

	opts := search.Options{
		Field:         field,
		Configuration: cfg,
		Optimizable:   o.ids,
		Params:        params,
	}
	if !o.noSnapshots {
		outputs, err := store.NewFSStore(o.outDir)
		if err != nil {
			return err
		}
		renderer := render.NewPlotRenderer(outputs)
		opts.Renderer = renderer
		opts.Cleaner = outputs

		if o.baseMap {
			// Written after the driver clears the directory
			defer func() {
				if _, err := renderer.BaseMap(field); err != nil {
					slog.Warn("Failed to render base map", "error", err)
				}
			}()
		}
	}

	driver, err := search.New(method, opts)
	if err != nil {
		return err
	}

	start := time.Now()
	for p, err := range driver.Run(ctx) {
		if err != nil {
			return err
		}
		if p.Snapshot != "" {
			fmt.Fprintf(out, "iter %6d  score %.6f  %s\n", p.Iteration, p.Score, p.Snapshot)
		} else {
			fmt.Fprintf(out, "iter %6d  score %.6f\n", p.Iteration, p.Score)
		}
	}

	final := driver.Final()
	state := driver.State()
	slog.Info("Optimization complete",
		"method", state.Method,
		"iterations", state.Iteration,
		"score", state.LastScore,
		"elapsed", time.Since(start),
	)

	printConfiguration(out, final)

	if o.saveProfile != "" {
		if err := config.SaveProfile(o.profilesPath, o.saveProfile, final); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved profile %q to %s\n", o.saveProfile, o.profilesPath)
	}
	return nil
}

func printConfiguration(out io.Writer, cfg placement.Configuration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATION\tX\tY\tWEIGHT")
	fmt.Fprintln(w, "-------\t-\t-\t------")
	for _, id := range cfg.IDs() {
		s := cfg[id]
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%.4f\n", id, s.XCoord, s.YCoord, s.Weight)
	}
	w.Flush()
}
