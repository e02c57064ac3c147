package reconcile

import (
	"testing"
	"time"

	"github.com/botcrew/orchestrator/internal/runtime"
)

func TestDecideRunning_TransitionTable(t *testing.T) {
	tests := []struct {
		name        string
		phase       runtime.Phase
		handleKnown bool
		want        runningAction
	}{
		{"handle absent", "", false, actionMarkError},
		{"phase failed", runtime.PhaseFailed, true, actionTerminateAndMarkError},
		{"phase pending", runtime.PhasePending, true, actionAwaitPendingTimeout},
		{"phase running", runtime.PhaseRunning, true, actionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decideRunning(tt.phase, tt.handleKnown)
			if got != tt.want {
				t.Errorf("decideRunning(%q, %v) = %v, want %v", tt.phase, tt.handleKnown, got, tt.want)
			}
		})
	}
}

func TestRecoveryBackoff_ExponentialUntilCap(t *testing.T) {
	tests := []struct {
		failureCount int
		want         time.Duration
	}{
		{recoveryThreshold, 10 * time.Second},
		{recoveryThreshold + 1, 20 * time.Second},
		{recoveryThreshold + 2, 40 * time.Second},
		{recoveryThreshold + 3, 80 * time.Second},
		{recoveryThreshold + 4, 160 * time.Second},
		{recoveryThreshold + 5, 320 * time.Second},
		{recoveryThreshold + 6, 600 * time.Second}, // capped
		{recoveryThreshold + 20, 600 * time.Second},
	}
	for _, tt := range tests {
		got := recoveryBackoff(tt.failureCount)
		if got != tt.want {
			t.Errorf("recoveryBackoff(%d) = %v, want %v", tt.failureCount, got, tt.want)
		}
	}
}
