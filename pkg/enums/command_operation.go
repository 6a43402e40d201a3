package enums

import "fmt"

// CommandOperation names the x2many commands understood by the line record model.
type CommandOperation string

const (
	CommandOperationDeleteAll CommandOperation = "DELETE_ALL"
	CommandOperationCreate    CommandOperation = "CREATE"
	CommandOperationLink      CommandOperation = "LINK"
)

var validCommandOperations = []CommandOperation{
	CommandOperationDeleteAll,
	CommandOperationCreate,
	CommandOperationLink,
}

// String implements fmt.Stringer.
func (c CommandOperation) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommandOperation.
func (c CommandOperation) IsValid() bool {
	for _, candidate := range validCommandOperations {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommandOperation converts raw input into a CommandOperation.
func ParseCommandOperation(value string) (CommandOperation, error) {
	for _, candidate := range validCommandOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid command operation %q", value)
}
