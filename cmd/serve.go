package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gridopt/internal/geo"
	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/server"
)

var (
	serveAddr        string
	serveZones       string
	servePopField    string
	serveIDField     string
	serveProfiles    string
	serveModels      string
	serveOutDir      string
	serveNoSnapshots bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Loads the zone map once and serves optimization runs over HTTP:
  POST /api/v1/runs               start a run
  GET  /api/v1/runs[/{id}]        run status
  GET  /api/v1/runs/{id}/events   progress stream (SSE)
  GET  /outputs/{id}/{file}       snapshot images
  GET  /metrics                   Prometheus metrics`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", ":8080", "Listen address")
	f.StringVar(&serveZones, "zones", "", "Zone map (.shp, .geojson or .csv)")
	f.StringVar(&servePopField, "population-field", geo.DefaultPopulationField, "Zone attribute holding the population")
	f.StringVar(&serveIDField, "id-field", "", "Zone attribute used as id")
	f.StringVar(&serveProfiles, "profiles", "config/grid_config.json", "Station profile document")
	f.StringVar(&serveModels, "models", "config/model_config.json", "Method settings document")
	f.StringVar(&serveOutDir, "out", "outputs", "Base directory for run snapshots")
	f.BoolVar(&serveNoSnapshots, "no-snapshots", false, "Skip snapshot images")

	serveCmd.MarkFlagRequired("zones")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	zones, err := geo.Load(serveZones, geo.Options{PopulationField: servePopField, IDField: serveIDField})
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}
	field, err := placement.NewCostField(zones)
	if err != nil {
		return err
	}

	s := server.NewServer(server.Config{
		Addr:        serveAddr,
		OutputDir:   serveOutDir,
		ProfilePath: serveProfiles,
		ModelPath:   serveModels,
		NoSnapshots: serveNoSnapshots,
	}, field)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		slog.Info("Received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
