package enums

import "fmt"

// EntryMode is the editing mode a freshly added line starts in.
type EntryMode string

const (
	EntryModeReadonly EntryMode = "readonly"
	EntryModeEdit     EntryMode = "edit"
)

var validEntryModes = []EntryMode{
	EntryModeReadonly,
	EntryModeEdit,
}

// String implements fmt.Stringer.
func (e EntryMode) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EntryMode.
func (e EntryMode) IsValid() bool {
	for _, candidate := range validEntryModes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEntryMode converts raw input into a EntryMode.
func ParseEntryMode(value string) (EntryMode, error) {
	for _, candidate := range validEntryModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry mode %q", value)
}
