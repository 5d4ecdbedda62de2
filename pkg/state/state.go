// Package state normalises chassis and host power states reported on the bus and keeps
// track of the last observed states against the expected transition target.
package state

import (
	"strings"

	"github.com/openbmc/hostpwrctl/pkg/constants"
)

// Power is a normalised power state of a chassis or a host.
type Power int

const (
	// PowerUnknown is used for anything not recognised as on or off, including
	// transitional states and states never observed.
	PowerUnknown Power = iota
	// PowerOn means the subsystem is powered and, for the host, running.
	PowerOn
	// PowerOff means the subsystem is powered off.
	PowerOff
)

func (p Power) String() string {
	switch p {
	case PowerOn:
		return "On"
	case PowerOff:
		return "Off"
	default:
		return "Unknown"
	}
}

// State is a power state observed on the bus, with the raw identifier kept for display.
type State struct {
	Power Power
	Raw   string
}

// ParseChassis normalises a chassis CurrentPowerState value.
func ParseChassis(raw string) State {
	switch raw {
	case constants.ChassisStateOn:
		return State{Power: PowerOn, Raw: raw}
	case constants.ChassisStateOff:
		return State{Power: PowerOff, Raw: raw}
	default:
		return State{Power: PowerUnknown, Raw: raw}
	}
}

// ParseHost normalises a host CurrentHostState value.
func ParseHost(raw string) State {
	switch raw {
	case constants.HostStateRunning:
		return State{Power: PowerOn, Raw: raw}
	case constants.HostStateOff:
		return State{Power: PowerOff, Raw: raw}
	default:
		return State{Power: PowerUnknown, Raw: raw}
	}
}

// String returns the raw identifier without its class name, e.g. "Running" for
// "xyz.openbmc_project.State.Host.HostState.Running".
func (s State) String() string {
	if s.Raw == "" {
		return PowerUnknown.String()
	}

	return TrimClassName(s.Raw)
}

// TrimClassName removes everything up to and including the last dot. Values without a dot,
// or with a dot only at the very beginning, are returned unchanged.
func TrimClassName(value string) string {
	if last := strings.LastIndexByte(value, '.'); last > 0 {
		return value[last+1:]
	}

	return value
}
