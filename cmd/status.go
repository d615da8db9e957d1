package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/gridopt/internal/server"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query server runs",
	Long: `Queries a running server for run information.
Without a run id all runs are listed; with one, its details are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 10 * time.Second}
		if len(args) == 0 {
			return listRuns(client, cmd.OutOrStdout(), serverURL+"/api/v1/runs")
		}
		return getRunStatus(client, cmd.OutOrStdout(), serverURL+"/api/v1/runs/"+args[0], args[0])
	},
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func listRuns(client *http.Client, out io.Writer, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var runs []server.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tMETHOD\tSTATE\tITERATION\tSCORE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f -> %.4f\n",
			run.ID, run.Request.Method, run.State, run.Iteration, run.InitialScore, run.Score)
	}
	return w.Flush()
}

func getRunStatus(client *http.Client, out io.Writer, url, runID string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("run not found: %s", runID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status struct {
		server.Run
		Elapsed float64 `json:"elapsed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(out, "Run: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	fmt.Fprintf(out, "Method: %s\n", status.Request.Method)
	if status.Request.Profile != "" {
		fmt.Fprintf(out, "Profile: %s\n", status.Request.Profile)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Iteration: %d\n", status.Iteration)
	fmt.Fprintf(out, "  Initial Score: %.4f\n", status.InitialScore)
	fmt.Fprintf(out, "  Score: %.4f\n", status.Score)
	if status.InitialScore > 0 {
		improvement := status.InitialScore - status.Score
		fmt.Fprintf(out, "  Improvement: %.4f (%.1f%%)\n", improvement, improvement/status.InitialScore*100)
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.Snapshot != "" {
		fmt.Fprintf(out, "  Snapshot: %s%s\n", serverURL, status.Snapshot)
	}

	if len(status.Final) > 0 {
		fmt.Fprintln(out)
		printConfiguration(out, status.Final)
	}
	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}
	return nil
}
