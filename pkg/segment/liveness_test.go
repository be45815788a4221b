package segment

import (
	"fmt"
	"testing"
	"time"

	"github.com/openeps/jrnlyzer/pkg/journal"
)

func aliveEntry(t *testing.T, line, status int, sec int) *journal.Entry {
	t.Helper()
	name := map[int]string{
		0: "ReportScatDead",
		1: "ReportScatInitializing",
		2: "ReportScatLoading",
		3: "ReportScatAlive",
	}[status]
	raw := fmt.Sprintf("11/30/25 08:%02d:%02d.000 MTXPOS SCATAliveInt = %d (%s)", sec/60, sec%60, status, name)
	return entryAt(t, line, raw)
}

func TestStateMachine_AliveTransitionsDeduplicated(t *testing.T) {
	sm := NewStateMachine()
	for i, status := range []int{3, 3, 0, 0, 3} {
		sm.Process(aliveEntry(t, i+1, status, i))
	}

	// Runs compress: the leading healthy samples record nothing, the 0,0
	// run is one transition, and the return to 3 is one more.
	if len(sm.AliveHistory) != 2 {
		t.Fatalf("got %d transitions, want 2", len(sm.AliveHistory))
	}
	if sm.AliveHistory[0].Status != AliveDead || sm.AliveHistory[1].Status != AliveUp {
		t.Errorf("transition statuses = [%d %d], want [0 3]",
			sm.AliveHistory[0].Status, sm.AliveHistory[1].Status)
	}
	if !sm.IsAlive() {
		t.Error("IsAlive() = false after final status 3")
	}
}

func TestStateMachine_NamedStatesAlwaysRecorded(t *testing.T) {
	sm := NewStateMachine()
	lines := []string{
		"11/30/25 08:00:00.000 MTXPOS >>>>>>SCATState = StateReset           - was StateNone",
		"11/30/25 08:00:01.000 MTXPOS >>>>>>SCATState = StateIdle            - was StateReset",
		"11/30/25 08:00:02.000 MTXPOS >>>>>>SCATState = StateReset           - was StateIdle",
	}
	for i, l := range lines {
		sm.Process(entryAt(t, i+1, l))
	}

	if len(sm.StateHistory) != 3 {
		t.Fatalf("got %d state changes, want 3", len(sm.StateHistory))
	}
	if sm.CurrentState != "StateReset" {
		t.Errorf("CurrentState = %q, want StateReset", sm.CurrentState)
	}
	if sm.StateHistory[1].OldState != "StateReset" || sm.StateHistory[1].NewState != "StateIdle" {
		t.Errorf("second change = %s->%s, want StateReset->StateIdle",
			sm.StateHistory[1].OldState, sm.StateHistory[1].NewState)
	}
}

func TestDeadPeriods(t *testing.T) {
	ts := func(sec int) time.Time {
		return time.Date(2025, 11, 30, 8, 0, sec, 0, time.UTC)
	}

	t.Run("closed period", func(t *testing.T) {
		history := []AliveTransition{
			{Timestamp: ts(0), Status: AliveUp},
			{Timestamp: ts(10), Status: AliveDead},
			{Timestamp: ts(90), Status: AliveUp},
		}
		periods := DeadPeriods(history)
		if len(periods) != 1 {
			t.Fatalf("got %d periods, want 1", len(periods))
		}
		p := periods[0]
		if p.Open {
			t.Error("period marked open, want closed")
		}
		if got := p.DurationSeconds(); got != 80 {
			t.Errorf("DurationSeconds() = %v, want 80", got)
		}
	})

	t.Run("open-ended period", func(t *testing.T) {
		history := []AliveTransition{
			{Timestamp: ts(0), Status: AliveUp},
			{Timestamp: ts(10), Status: AliveDead},
			{Timestamp: ts(10), Status: AliveDead}, // not produced by the machine, but harmless
		}
		periods := DeadPeriods(history)
		if len(periods) != 1 {
			t.Fatalf("got %d periods, want 1", len(periods))
		}
		if !periods[0].Open {
			t.Error("period not marked open")
		}
	})

	t.Run("intermediate statuses end a run", func(t *testing.T) {
		history := []AliveTransition{
			{Timestamp: ts(0), Status: AliveDead},
			{Timestamp: ts(30), Status: AliveInitializing},
			{Timestamp: ts(40), Status: AliveLoading},
			{Timestamp: ts(50), Status: AliveUp},
		}
		periods := DeadPeriods(history)
		if len(periods) != 1 {
			t.Fatalf("got %d periods, want 1", len(periods))
		}
		if got := periods[0].DurationSeconds(); got != 30 {
			t.Errorf("DurationSeconds() = %v, want 30 (ends at first non-dead status)", got)
		}
	})

	t.Run("no dead samples", func(t *testing.T) {
		history := []AliveTransition{{Timestamp: ts(0), Status: AliveUp}}
		if periods := DeadPeriods(history); len(periods) != 0 {
			t.Fatalf("got %d periods, want 0", len(periods))
		}
	})
}
