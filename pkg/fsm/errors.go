package fsm

// TransitionNotAllowed is returned when attempting a transition that is not in the
// transition graph
type TransitionNotAllowed struct {
	Msg string
}

func (e TransitionNotAllowed) Error() string {
	return e.Msg
}

// StopError is returned when a stoppable machine is in a stopped state due to a disallowed
// transition
type StopError struct {
	Msg string
}

func (e StopError) Error() string {
	return e.Msg
}
