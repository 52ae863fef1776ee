// Package fsm implements a small finite state machine used to track the alert state of a
// monitored characteristic
package fsm

import (
	"fmt"
	"slices"
)

// State represents a possible state of the machine
type State string

// Machine is a basic finite state machine.  It is not safe for concurrent use; callers that
// share a machine must serialize access.
type Machine struct {
	current   State
	initial   State
	allowable map[State][]State
	stoppable stoppable
}

// NewMachine returns a new Machine with configured options.  Without options the machine has no
// allowed transitions.
func NewMachine(initial State, opts ...MachineOption) (*Machine, error) {
	machine := &Machine{
		current:   initial,
		initial:   initial,
		allowable: map[State][]State{},
	}
	for _, opt := range opts {
		if err := opt(machine); err != nil {
			return nil, err
		}
	}
	return machine, nil
}

// State returns the current state of the Machine
func (m *Machine) State() State {
	return m.current
}

// Allowable checks whether a transition between two states is allowed
func (m *Machine) Allowable(from, to State) bool {
	return slices.Contains(m.allowable[from], to)
}

// Transition changes the current state if the transition is allowed.  Transitioning to the
// current state is a no-op and never an error.  It returns whether the state changed.
func (m *Machine) Transition(to State) (bool, error) {
	if err := m.stoppable.ok(); err != nil {
		return false, err
	}
	if to == m.current {
		return false, nil
	}
	if !m.Allowable(m.current, to) {
		m.stoppable.stopped = true
		return false, TransitionNotAllowed{Msg: fmt.Sprintf("cannot transition from state %s to %s", m.current, to)}
	}
	m.current = to
	return true, nil
}

// Reset returns the machine to its initial state and clears any stop condition
func (m *Machine) Reset() {
	m.current = m.initial
	m.stoppable.stopped = false
}
