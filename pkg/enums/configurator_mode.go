package enums

import "fmt"

// ConfiguratorMode describes why the configurator dialog was opened.
type ConfiguratorMode string

const (
	ConfiguratorModeAdd     ConfiguratorMode = "add"
	ConfiguratorModeEdit    ConfiguratorMode = "edit"
	ConfiguratorModeOptions ConfiguratorMode = "options"
)

var validConfiguratorModes = []ConfiguratorMode{
	ConfiguratorModeAdd,
	ConfiguratorModeEdit,
	ConfiguratorModeOptions,
}

// String implements fmt.Stringer.
func (c ConfiguratorMode) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConfiguratorMode.
func (c ConfiguratorMode) IsValid() bool {
	for _, candidate := range validConfiguratorModes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConfiguratorMode converts raw input into a ConfiguratorMode.
func ParseConfiguratorMode(value string) (ConfiguratorMode, error) {
	for _, candidate := range validConfiguratorModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid configurator mode %q", value)
}
