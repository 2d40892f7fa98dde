package registration

// State is a step of a single registration attempt.
type State string

const (
	StateValidating            State = "validating"
	StateDuplicateChecking     State = "duplicate_checking"
	StateCapacityReserving     State = "capacity_reserving"
	StateRegistrationRecording State = "registration_recording"
	StateCommitted             State = "committed"
	StateRejected              State = "rejected"
)

// IsTerminal reports whether no further transition can leave the state.
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateRejected
}
