package fsm

// MachineOption represents options to initially set up a machine
type MachineOption func(m *Machine) error

// WithTransitions adds edges to the transition graph using the T(from, to...) short function.
// For example `NewMachine(None, WithTransitions(T(None, Warning, Critical), T(Warning, None)))`
func WithTransitions(transitions ...[]Transition) MachineOption {
	return func(m *Machine) error {
		for _, t := range flatten(transitions) {
			m.allowable[t.From] = append(m.allowable[t.From], t.To)
		}
		return nil
	}
}

// WithStoppable makes the state machine stop after a disallowed transition.  Further attempted
// transitions always error until Reset is called.
func WithStoppable() MachineOption {
	return func(m *Machine) error {
		m.stoppable.stopOnError = true
		return nil
	}
}

type stoppable struct {
	stopOnError bool
	stopped     bool
}

func (s stoppable) ok() error {
	if s.stopOnError && s.stopped {
		return StopError{Msg: "state machine is in stopped state due to disallowed transition"}
	}
	return nil
}
