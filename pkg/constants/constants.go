// Package constants has D-Bus names of the OpenBMC chassis and host state objects shared by
// the property client, the notification watcher and the transition dispatcher.
package constants

const (
	// ObjectMapperService is a bus name of the OpenBMC object mapper.
	ObjectMapperService = "xyz.openbmc_project.ObjectMapper"

	// ObjectMapperPath is an object path used by the object mapper.
	ObjectMapperPath = "/xyz/openbmc_project/object_mapper"

	// ObjectMapperInterface is the object mapper interface name.
	ObjectMapperInterface = ObjectMapperService

	// PropertiesInterface is the standard D-Bus properties interface.
	PropertiesInterface = "org.freedesktop.DBus.Properties"

	// PropertiesChangedMember is a name of the signal emitted on PropertiesInterface when
	// object properties change.
	PropertiesChangedMember = "PropertiesChanged"
)

const (
	// ChassisPath is an object path of the first chassis.
	ChassisPath = "/xyz/openbmc_project/state/chassis0"

	// ChassisInterface is the chassis state interface name.
	ChassisInterface = "xyz.openbmc_project.State.Chassis"

	// ChassisStateProperty holds current chassis power state.
	ChassisStateProperty = "CurrentPowerState"

	// ChassisTransitionProperty is written to request chassis power transition.
	ChassisTransitionProperty = "RequestedPowerTransition"

	// ChassisStateOn is reported when chassis power is on.
	ChassisStateOn = ChassisInterface + ".PowerState.On"

	// ChassisStateOff is reported when chassis power is off.
	ChassisStateOff = ChassisInterface + ".PowerState.Off"

	// ChassisTransitionOff requests chassis power off, without waiting for the host to shut down.
	ChassisTransitionOff = ChassisInterface + ".Transition.Off"
)

const (
	// HostPath is an object path of the first host.
	HostPath = "/xyz/openbmc_project/state/host0"

	// HostInterface is the host state interface name.
	HostInterface = "xyz.openbmc_project.State.Host"

	// HostStateProperty holds current host state.
	HostStateProperty = "CurrentHostState"

	// HostTransitionProperty is written to request host transition.
	HostTransitionProperty = "RequestedHostTransition"

	// HostStateRunning is reported once the host has booted.
	HostStateRunning = HostInterface + ".HostState.Running"

	// HostStateOff is reported when the host is off.
	HostStateOff = HostInterface + ".HostState.Off"

	// HostTransitionOn requests host power on.
	HostTransitionOn = HostInterface + ".Transition.On"

	// HostTransitionOff requests graceful host shut down.
	HostTransitionOff = HostInterface + ".Transition.Off"

	// HostTransitionReboot requests host reboot.
	HostTransitionReboot = HostInterface + ".Transition.Reboot"
)
