package segment

import (
	"regexp"
	"strconv"

	"github.com/openeps/jrnlyzer/pkg/journal"
)

// >>>>>>SCATState = StateReset           - was StateNone
var scatStatePattern = regexp.MustCompile(`>>>>>>SCATState = (\S+)\s+- was (\S+)`)

// SCATAliveInt = 3 (ReportScatAlive)
var alivePattern = regexp.MustCompile(`SCATAliveInt = (\d) \((\w+)\)`)

// Alive status values reported by the pinpad.
const (
	AliveDead         = 0
	AliveInitializing = 1
	AliveLoading      = 2
	AliveUp           = 3
	AliveNone         = 9
)

// StateMachine tracks SCAT (pinpad) named states and alive status from the
// entry stream. Alive-status runs are compressed: only transitions are
// recorded. Named state changes are always appended, since the diagnostics
// layer cares about cycling, not just net state.
type StateMachine struct {
	CurrentState string
	AliveStatus  int
	StateHistory []StateChange
	AliveHistory []AliveTransition
}

// NewStateMachine creates a tracker. The alive status starts at AliveUp so
// a leading run of healthy samples records no transition; only a departure
// from healthy opens the timeline.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		CurrentState: "StateNone",
		AliveStatus:  AliveUp,
	}
}

// Process inspects one entry for state and alive-status markers.
func (sm *StateMachine) Process(e *journal.Entry) {
	msg := e.Message

	if m := scatStatePattern.FindStringSubmatch(msg); m != nil {
		sm.CurrentState = m[1]
		sm.StateHistory = append(sm.StateHistory, StateChange{
			Timestamp: e.Timestamp,
			NewState:  m[1],
			OldState:  m[2],
		})
	}

	if m := alivePattern.FindStringSubmatch(msg); m != nil {
		status, err := strconv.Atoi(m[1])
		if err != nil {
			return
		}
		if status != sm.AliveStatus {
			sm.AliveStatus = status
			sm.AliveHistory = append(sm.AliveHistory, AliveTransition{
				Timestamp: e.Timestamp,
				Status:    status,
				Name:      m[2],
			})
		}
	}
}

// IsAlive reports whether the last observed alive status was alive.
func (sm *StateMachine) IsAlive() bool {
	return sm.AliveStatus == AliveUp
}

// IsDead reports whether the last observed alive status was dead.
func (sm *StateMachine) IsDead() bool {
	return sm.AliveStatus == AliveDead
}

// DeadPeriods derives contiguous dead runs from the alive history. Each run
// ends at the next non-dead transition; a run still open at end of stream is
// reported with the last known timestamp and Open set.
func (sm *StateMachine) DeadPeriods() []DeadPeriod {
	return DeadPeriods(sm.AliveHistory)
}

// DeadPeriods extracts dead runs from an alive-transition timeline.
func DeadPeriods(history []AliveTransition) []DeadPeriod {
	var periods []DeadPeriod
	var deadStart *AliveTransition

	for i := range history {
		tr := &history[i]
		switch {
		case tr.Status == AliveDead && deadStart == nil:
			deadStart = tr
		case tr.Status != AliveDead && deadStart != nil:
			periods = append(periods, DeadPeriod{Start: deadStart.Timestamp, End: tr.Timestamp})
			deadStart = nil
		}
	}

	if deadStart != nil && len(history) > 0 {
		periods = append(periods, DeadPeriod{
			Start: deadStart.Timestamp,
			End:   history[len(history)-1].Timestamp,
			Open:  true,
		})
	}
	return periods
}
