package enums

import "fmt"

// LinePosition is where AddNew inserts a line in the order.
type LinePosition string

const (
	LinePositionTop    LinePosition = "top"
	LinePositionBottom LinePosition = "bottom"
)

var validLinePositions = []LinePosition{
	LinePositionTop,
	LinePositionBottom,
}

// String implements fmt.Stringer.
func (l LinePosition) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LinePosition.
func (l LinePosition) IsValid() bool {
	for _, candidate := range validLinePositions {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLinePosition converts raw input into a LinePosition.
func ParseLinePosition(value string) (LinePosition, error) {
	for _, candidate := range validLinePositions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line position %q", value)
}
