package lifecycle

import (
	"fmt"

	"go.uber.org/atomic"
)

// State is the coarse lifecycle phase of the node process. Phases only move forward.
type State int32

const (
	StateConstructed State = iota
	StatePrepared
	StateStarted
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StatePrepared:
		return "prepared"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ErrInvalidTransition is returned when a phase change would move backwards or skip
// over a required phase.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid lifecycle transition from %s to %s", e.From, e.To)
}

// Is matches any ErrInvalidTransition regardless of its phases.
func (e ErrInvalidTransition) Is(other error) bool {
	_, ok := other.(ErrInvalidTransition)
	return ok
}

// StateMachine tracks the node's lifecycle phase. It is safe for concurrent use.
type StateMachine struct {
	state *atomic.Int32
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: atomic.NewInt32(int32(StateConstructed))}
}

// Current returns the current phase.
func (m *StateMachine) Current() State {
	return State(m.state.Load())
}

// Transition moves to the given phase. Stopping may be entered from any phase before it,
// every other phase only from its direct predecessor.
func (m *StateMachine) Transition(to State) error {
	for {
		from := m.Current()
		if !validTransition(from, to) {
			return ErrInvalidTransition{From: from, To: to}
		}
		if m.state.CompareAndSwap(int32(from), int32(to)) {
			return nil
		}
	}
}

// IsStopping reports whether shutdown has commenced.
func (m *StateMachine) IsStopping() bool {
	return m.Current() >= StateStopping
}

func validTransition(from, to State) bool {
	if to == StateStopping {
		return from < StateStopping
	}
	return to == from+1
}
