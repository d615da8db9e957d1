package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/search"
)

// RunState represents the current state of a run
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// Terminal reports whether a run in this state will not change again
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// RunRequest is the body of POST /api/v1/runs. Stations and Params override
// the profile and model documents the server was started with.
type RunRequest struct {
	Method      string                  `json:"method"`
	Profile     string                  `json:"profile,omitempty"`
	Optimizable []string                `json:"optimizable,omitempty"`
	MaxIter     int                     `json:"maxIter,omitempty"`
	Stations    placement.Configuration `json:"stations,omitempty"`
	Params      *search.Hyperparameters `json:"params,omitempty"`
}

// Run represents one optimization run
type Run struct {
	ID           string                  `json:"id"`
	State        RunState                `json:"state"`
	Request      RunRequest              `json:"request"`
	Iteration    int                     `json:"iteration"`
	InitialScore float64                 `json:"initialScore"`
	Score        float64                 `json:"score"`
	Snapshot     string                  `json:"snapshot,omitempty"`
	Final        placement.Configuration `json:"final,omitempty"`
	StartTime    time.Time               `json:"startTime"`
	EndTime      *time.Time              `json:"endTime,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// clone returns a copy safe to hand out while the worker keeps updating
func (r *Run) clone() Run {
	c := *r
	c.Final = r.Final.Clone()
	if r.EndTime != nil {
		t := *r.EndTime
		c.EndTime = &t
	}
	return c
}

// RunManager manages the lifecycle of runs
type RunManager struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewRunManager creates a new RunManager
func NewRunManager() *RunManager {
	return &RunManager{
		runs:        make(map[string]*Run),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateRun registers a pending run for the request
func (rm *RunManager) CreateRun(req RunRequest) Run {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run := &Run{
		ID:        uuid.New().String(),
		State:     StatePending,
		Request:   req,
		StartTime: time.Now(),
	}

	rm.runs[run.ID] = run
	return run.clone()
}

// GetRun retrieves a copy of a run by ID
func (rm *RunManager) GetRun(id string) (Run, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	run, exists := rm.runs[id]
	if !exists {
		return Run{}, false
	}
	return run.clone(), true
}

// ListRuns returns all runs, oldest first
func (rm *RunManager) ListRuns() []Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	runs := make([]Run, 0, len(rm.runs))
	for _, run := range rm.runs {
		runs = append(runs, run.clone())
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	return runs
}

// UpdateRun atomically updates a run using the provided function
func (rm *RunManager) UpdateRun(id string, updateFn func(*Run)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run, exists := rm.runs[id]
	if !exists {
		return fmt.Errorf("run not found: %s", id)
	}

	updateFn(run)
	return nil
}

// GetRunningRuns returns all runs currently in the running state
func (rm *RunManager) GetRunningRuns() []Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	running := make([]Run, 0)
	for _, run := range rm.runs {
		if run.State == StateRunning {
			running = append(running, run.clone())
		}
	}
	return running
}

// setCancel remembers how to stop a run
func (rm *RunManager) setCancel(id string, cancel context.CancelFunc) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.cancels[id] = cancel
}

// clearCancel forgets the cancel function of a finished run
func (rm *RunManager) clearCancel(id string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.cancels, id)
}

// CancelRun stops a run between iterations. It returns false when the run is
// unknown or already finished.
func (rm *RunManager) CancelRun(id string) bool {
	rm.mu.RLock()
	cancel, ok := rm.cancels[id]
	rm.mu.RUnlock()

	if !ok {
		return false
	}
	cancel()
	return true
}
