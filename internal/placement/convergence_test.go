package placement

import (
	"math"
	"testing"
)

func TestConvergenceTracker_BasicConvergence(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.01,
	})

	if tracker.Best() != math.Inf(1) {
		t.Errorf("Expected initial best to be Inf, got %v", tracker.Best())
	}

	if tracker.Update(100) {
		t.Error("Should not converge on first update")
	}

	// 20% improvement resets the stale counter
	if tracker.Update(80) {
		t.Error("Should not converge after improvement")
	}
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count 0, got %d", tracker.StaleCount())
	}

	// Below 1% of 80
	for i, score := range []float64{79.5, 79.6} {
		if tracker.Update(score) {
			t.Errorf("Should not converge yet (%d/3)", i+1)
		}
	}
	if !tracker.Update(79.7) {
		t.Error("Should converge after patience exceeded (3/3)")
	}
	if tracker.Best() != 79.5 {
		t.Errorf("Expected best 79.5, got %v", tracker.Best())
	}
}

func TestConvergenceTracker_ImprovementResetsStaleCount(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 0.05,
	})

	tracker.Update(1.0)
	tracker.Update(0.99)
	if tracker.StaleCount() != 1 {
		t.Errorf("Expected stale count 1, got %d", tracker.StaleCount())
	}

	tracker.Update(0.94)
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count reset to 0, got %d", tracker.StaleCount())
	}
}

func TestConvergenceTracker_Disabled(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{})

	for i := 0; i < 10; i++ {
		if tracker.Update(1.0) {
			t.Fatal("Disabled tracker should never converge")
		}
	}
	if len(tracker.History()) != 0 {
		t.Errorf("Disabled tracker should not record history, got %d", len(tracker.History()))
	}
}

func TestConvergenceTracker_HistoryIsCopy(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(3)
	tracker.Update(2)

	history := tracker.History()
	history[0] = 42

	if tracker.History()[0] != 3 {
		t.Error("History should return a copy")
	}
}
