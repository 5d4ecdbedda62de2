// Package objectmapper resolves which bus service owns a given OpenBMC object and interface,
// using the xyz.openbmc_project.ObjectMapper service.
package objectmapper

import (
	"context"
	"errors"
	"fmt"
	"sort"

	godbus "github.com/godbus/dbus/v5"

	"github.com/openbmc/hostpwrctl/pkg/constants"
)

// ErrServiceNotFound is returned when no service implements requested interface on given path.
var ErrServiceNotFound = errors.New("service not found")

// Client describes functionality of provided object mapper client.
type Client interface {
	ResolveOwner(ctx context.Context, path, iface string) (string, error)
}

// Objector describes functionality required from a given D-Bus connection.
type Objector interface {
	Object(string, godbus.ObjectPath) godbus.BusObject
}

// Caller describes required functionality from D-Bus object.
type Caller interface {
	CallWithContext(ctx context.Context, method string, flags godbus.Flags, args ...interface{}) *godbus.Call
}

// New creates new object mapper client using given D-Bus connection.
func New(objector Objector) (Client, error) {
	if objector == nil {
		return nil, fmt.Errorf("no objector given")
	}

	return &mapper{
		caller: objector.Object(constants.ObjectMapperService, godbus.ObjectPath(constants.ObjectMapperPath)),
	}, nil
}

// ResolveOwner returns the name of the service implementing iface on path. When more than one
// service does, the lexicographically first one is returned.
func (m *mapper) ResolveOwner(ctx context.Context, path, iface string) (string, error) {
	method := constants.ObjectMapperInterface + ".GetObject"

	services := map[string][]string{}

	if err := m.caller.CallWithContext(ctx, method, 0, path, []string{iface}).Store(&services); err != nil {
		return "", fmt.Errorf("calling %s for %q: %w", method, path, err)
	}

	if len(services) == 0 {
		return "", fmt.Errorf("resolving owner of %q on %q: %w", iface, path, ErrServiceNotFound)
	}

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}

	sort.Strings(names)

	return names[0], nil
}

type mapper struct {
	caller Caller
}

// Mapper must implement Client interface.
var _ Client = &mapper{}
