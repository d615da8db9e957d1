package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/gridopt/internal/geo"
	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/search"
	"github.com/cwbudde/gridopt/internal/server"
)

func newStatusServer(t *testing.T) *httptest.Server {
	t.Helper()
	zones, err := geo.ReadCSV("zones", strings.NewReader(testZones))
	if err != nil {
		t.Fatalf("Failed to read zones: %v", err)
	}
	field, err := placement.NewCostField(zones)
	if err != nil {
		t.Fatalf("Failed to build cost field: %v", err)
	}

	s := server.NewServer(server.Config{NoSnapshots: true}, field)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func startRun(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(server.RunRequest{
		Method:   "GD",
		Stations: placement.Configuration{"alpha": {XCoord: 2, YCoord: 1, Weight: 1}},
		Params:   &search.Hyperparameters{MaxIter: 10, LearningRate: 0.001, DXY: 0.01},
	})
	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var run server.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("Failed to decode run: %v", err)
	}

	// Wait for the worker to finish
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := http.Get(ts.URL + "/api/v1/runs/" + run.ID)
		if err != nil {
			t.Fatalf("Failed to poll run: %v", err)
		}
		var got server.Run
		json.NewDecoder(r.Body).Decode(&got)
		r.Body.Close()
		if got.State.Terminal() {
			return run.ID
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Run %s did not finish", run.ID)
	return ""
}

func TestListRuns(t *testing.T) {
	ts := newStatusServer(t)
	client := ts.Client()

	var out bytes.Buffer
	if err := listRuns(client, &out, ts.URL+"/api/v1/runs"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No runs found") {
		t.Errorf("Unexpected output: %s", out.String())
	}

	id := startRun(t, ts)
	out.Reset()
	if err := listRuns(client, &out, ts.URL+"/api/v1/runs"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	s := out.String()
	if !strings.Contains(s, id) || !strings.Contains(s, "completed") {
		t.Errorf("Expected completed run %s in output:\n%s", id, s)
	}
}

func TestGetRunStatus(t *testing.T) {
	ts := newStatusServer(t)
	id := startRun(t, ts)

	var out bytes.Buffer
	if err := getRunStatus(ts.Client(), &out, ts.URL+"/api/v1/runs/"+id, id); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	s := out.String()
	for _, want := range []string{"Run: " + id, "State: completed", "Method: GD", "Iteration: 10", "alpha"} {
		if !strings.Contains(s, want) {
			t.Errorf("Output missing %q:\n%s", want, s)
		}
	}
}

func TestGetRunStatus_NotFound(t *testing.T) {
	ts := newStatusServer(t)

	err := getRunStatus(ts.Client(), &bytes.Buffer{}, ts.URL+"/api/v1/runs/missing", "missing")
	if err == nil || !strings.Contains(err.Error(), "run not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}
