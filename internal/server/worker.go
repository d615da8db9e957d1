package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/search"
)

// task is a constructed run waiting for its worker goroutine
type task struct {
	runID   string
	driver  search.Driver
	field   *placement.CostField
	initial placement.Configuration
	urlBase string // Prefix for snapshot URLs
}

// executeRun drives one optimization to completion, mirroring every progress
// event into the run record, the broadcaster and the metrics.
func executeRun(ctx context.Context, rm *RunManager, m *Metrics, t task) error {
	if _, exists := rm.GetRun(t.runID); !exists {
		return fmt.Errorf("run not found: %s", t.runID)
	}
	defer rm.broadcaster.Close(t.runID)

	initialScore, err := t.field.Score(t.initial)
	if err != nil {
		markRunFailed(rm, m, t.runID, fmt.Errorf("failed to score initial configuration: %w", err))
		return err
	}

	err = rm.UpdateRun(t.runID, func(r *Run) {
		r.State = StateRunning
		r.InitialScore = initialScore
		r.Score = initialScore
	})
	if err != nil {
		return err
	}

	m.RunsStarted.Inc()
	m.RunsActive.Inc()
	defer m.RunsActive.Dec()

	slog.Info("Starting run", "run_id", t.runID, "method", t.driver.State().Method, "initial_score", initialScore)
	start := time.Now()

	for p, err := range t.driver.Run(ctx) {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				markRunCancelled(rm, m, t.runID)
				return err
			}
			markRunFailed(rm, m, t.runID, err)
			return err
		}

		snapshot := ""
		if p.Snapshot != "" {
			snapshot = t.urlBase + p.Snapshot
		}
		rm.UpdateRun(t.runID, func(r *Run) {
			r.Iteration = p.Iteration
			r.Score = p.Score
			r.Snapshot = snapshot
		})
		m.Snapshots.Inc()
		m.SnapshotScore.Observe(p.Score)

		rm.broadcaster.Broadcast(ProgressEvent{
			RunID:     t.runID,
			State:     StateRunning,
			Iteration: p.Iteration,
			Score:     p.Score,
			Snapshot:  snapshot,
			Timestamp: time.Now(),
		})
	}

	elapsed := time.Since(start)
	final := t.driver.Final()
	endTime := time.Now()
	m.RunsFinished.WithLabelValues(string(StateCompleted)).Inc()
	m.RunDurationS.Observe(elapsed.Seconds())

	var done Run
	err = rm.UpdateRun(t.runID, func(r *Run) {
		r.State = StateCompleted
		r.Final = final
		r.EndTime = &endTime
		done = r.clone()
	})
	if err != nil {
		return err
	}

	slog.Info("Run completed",
		"run_id", t.runID,
		"elapsed", elapsed,
		"initial_score", initialScore,
		"score", done.Score,
		"iterations", t.driver.State().Iteration,
	)

	rm.broadcaster.Broadcast(ProgressEvent{
		RunID:     t.runID,
		State:     StateCompleted,
		Iteration: done.Iteration,
		Score:     done.Score,
		Snapshot:  done.Snapshot,
		Timestamp: time.Now(),
	})
	return nil
}

// markRunFailed marks a run as failed and tells its subscribers
func markRunFailed(rm *RunManager, m *Metrics, runID string, err error) {
	endTime := time.Now()
	m.RunsFinished.WithLabelValues(string(StateFailed)).Inc()
	var failed Run
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateFailed
		r.Error = err.Error()
		r.EndTime = &endTime
		failed = r.clone()
	})

	rm.broadcaster.Broadcast(ProgressEvent{
		RunID:     runID,
		State:     StateFailed,
		Iteration: failed.Iteration,
		Score:     failed.Score,
		Error:     failed.Error,
		Timestamp: endTime,
	})
	slog.Error("Run failed", "run_id", runID, "error", err)
}

// markRunCancelled marks a run as cancelled
func markRunCancelled(rm *RunManager, m *Metrics, runID string) {
	endTime := time.Now()
	m.RunsFinished.WithLabelValues(string(StateCancelled)).Inc()
	var cancelled Run
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateCancelled
		r.EndTime = &endTime
		cancelled = r.clone()
	})

	rm.broadcaster.Broadcast(ProgressEvent{
		RunID:     runID,
		State:     StateCancelled,
		Iteration: cancelled.Iteration,
		Score:     cancelled.Score,
		Timestamp: endTime,
	})
	slog.Info("Run cancelled", "run_id", runID)
}
