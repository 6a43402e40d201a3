package enums

import "fmt"

// DialogState tracks a configurator session through its lifecycle.
type DialogState string

const (
	DialogStateIdle              DialogState = "idle"
	DialogStateAwaitingSelection DialogState = "awaiting_selection"
	DialogStateConfirmed         DialogState = "confirmed"
	DialogStateClosed            DialogState = "closed"
)

var validDialogStates = []DialogState{
	DialogStateIdle,
	DialogStateAwaitingSelection,
	DialogStateConfirmed,
	DialogStateClosed,
}

// String implements fmt.Stringer.
func (d DialogState) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DialogState.
func (d DialogState) IsValid() bool {
	for _, candidate := range validDialogStates {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDialogState converts raw input into a DialogState.
func ParseDialogState(value string) (DialogState, error) {
	for _, candidate := range validDialogStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dialog state %q", value)
}

// IsTerminal reports whether no further signal is accepted in this state.
func (d DialogState) IsTerminal() bool {
	return d == DialogStateClosed
}
