// Package transition maps operations requested on the command line to the property write
// which starts them and the power states which confirm they are done.
package transition

import (
	"errors"
	"fmt"

	"github.com/openbmc/hostpwrctl/pkg/constants"
	"github.com/openbmc/hostpwrctl/pkg/state"
)

// ErrUnknownOperation is returned by Dispatch for operation names it does not know.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is a name of supported operation.
type Operation string

// Supported operations.
const (
	PowerOn  Operation = "on"
	PowerOff Operation = "off"
	SoftOff  Operation = "soft"
	Reboot   Operation = "reboot"
	Status   Operation = "status"
)

// Write is a remote property write starting a transition.
type Write struct {
	Path      string
	Interface string
	Property  string
	Value     string
}

// Request describes what should be done for an operation.
type Request struct {
	Operation Operation
	// Target is nil for read-only operations.
	Target *state.Target
	// Write is nil for read-only operations.
	Write *Write
	// Guard is the chassis power state in which the operation has nothing to do.
	Guard state.Power
	// Description is printed once the write is sent.
	Description string
	// Noop is printed when Guard is satisfied.
	Noop string
}

// ReadOnly reports whether the request only reports current states.
func (r Request) ReadOnly() bool {
	return r.Write == nil
}

// Satisfied reports whether there is nothing to do given current chassis state. Read-only
// requests are always satisfied.
func (r Request) Satisfied(chassis state.State) bool {
	if r.ReadOnly() {
		return true
	}

	return chassis.Power == r.Guard
}

// Usage describes the operation for help output.
type Usage struct {
	Operation Operation
	Help      string
}

// Operations returns supported operations in the order they are listed in help output.
func Operations() []Usage {
	return []Usage{
		{PowerOn, "turn the host on"},
		{PowerOff, "turn the host off"},
		{SoftOff, "gracefully turn the host off"},
		{Reboot, "reboot the host"},
		{Status, "show actual host power state"},
	}
}

// Dispatch returns request for given operation name.
func Dispatch(name string) (Request, error) {
	up := &state.Target{Chassis: state.PowerOn, Host: state.PowerOn}
	down := &state.Target{Chassis: state.PowerOff, Host: state.PowerOff}

	switch Operation(name) {
	case PowerOn:
		return Request{
			Operation:   PowerOn,
			Target:      up,
			Write:       hostWrite(constants.HostTransitionOn),
			Guard:       state.PowerOn,
			Description: "Power up signal was sent to host, waiting for system start.",
			Noop:        "System is already up.",
		}, nil
	case PowerOff:
		return Request{
			Operation: PowerOff,
			Target:    down,
			Write: &Write{
				Path:      constants.ChassisPath,
				Interface: constants.ChassisInterface,
				Property:  constants.ChassisTransitionProperty,
				Value:     constants.ChassisTransitionOff,
			},
			Guard:       state.PowerOff,
			Description: "Shutdown signal was sent to chassis, waiting for system down.",
			Noop:        "System is already down.",
		}, nil
	case SoftOff:
		return Request{
			Operation:   SoftOff,
			Target:      down,
			Write:       hostWrite(constants.HostTransitionOff),
			Guard:       state.PowerOff,
			Description: "Shutdown signal was sent to host, waiting for system down.",
			Noop:        "System is already down.",
		}, nil
	case Reboot:
		return Request{
			Operation:   Reboot,
			Target:      up,
			Write:       hostWrite(constants.HostTransitionReboot),
			Guard:       state.PowerOff,
			Description: "Reboot signal was sent to host, waiting for system down and start again.",
			Noop:        "Chassis is off, reboot is impossible.",
		}, nil
	case Status:
		return Request{Operation: Status}, nil
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
}

func hostWrite(value string) *Write {
	return &Write{
		Path:      constants.HostPath,
		Interface: constants.HostInterface,
		Property:  constants.HostTransitionProperty,
		Value:     value,
	}
}
