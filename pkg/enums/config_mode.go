package enums

import "fmt"

// ConfigMode selects how a configurable template is completed on a line.
type ConfigMode string

const (
	ConfigModeNone         ConfigMode = "none"
	ConfigModeConfigurator ConfigMode = "configurator"
	ConfigModeMatrix       ConfigMode = "matrix"
)

var validConfigModes = []ConfigMode{
	ConfigModeNone,
	ConfigModeConfigurator,
	ConfigModeMatrix,
}

// String implements fmt.Stringer.
func (c ConfigMode) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConfigMode.
func (c ConfigMode) IsValid() bool {
	for _, candidate := range validConfigModes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConfigMode converts raw input into a ConfigMode.
func ParseConfigMode(value string) (ConfigMode, error) {
	for _, candidate := range validConfigModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid config mode %q", value)
}
