// Package properties reads and writes string properties of OpenBMC objects over
// org.freedesktop.DBus.Properties, looking up the owning service with the object mapper first.
package properties

import (
	"context"
	"fmt"

	godbus "github.com/godbus/dbus/v5"

	"github.com/openbmc/hostpwrctl/pkg/constants"
	"github.com/openbmc/hostpwrctl/pkg/objectmapper"
)

// Client gets and sets single string properties of remote objects.
type Client interface {
	Get(ctx context.Context, path, iface, property string) (string, error)
	Set(ctx context.Context, path, iface, property, value string) error
}

// Resolver describes dependency of object resolving owning service of an object.
type Resolver interface {
	ResolveOwner(ctx context.Context, path, iface string) (string, error)
}

// Objector describes functionality required from a given D-Bus connection.
type Objector interface {
	Object(string, godbus.ObjectPath) godbus.BusObject
}

// New creates new properties client using given D-Bus connection and owner resolver.
func New(objector Objector, resolver Resolver) (Client, error) {
	if objector == nil {
		return nil, fmt.Errorf("no objector given")
	}

	if resolver == nil {
		return nil, fmt.Errorf("no resolver given")
	}

	return &client{
		objector: objector,
		resolver: resolver,
	}, nil
}

// Get returns string value of the property. Values of other types are reported as an error.
func (c *client) Get(ctx context.Context, path, iface, property string) (string, error) {
	object, err := c.object(ctx, path, iface)
	if err != nil {
		return "", err
	}

	method := constants.PropertiesInterface + ".Get"

	var value godbus.Variant

	if err := object.CallWithContext(ctx, method, 0, iface, property).Store(&value); err != nil {
		return "", fmt.Errorf("getting property %s.%s of %q: %w", iface, property, path, err)
	}

	s, ok := value.Value().(string)
	if !ok {
		return "", fmt.Errorf("property %s.%s of %q has unexpected signature %q",
			iface, property, path, value.Signature())
	}

	return s, nil
}

// Set writes string value to the property.
func (c *client) Set(ctx context.Context, path, iface, property, value string) error {
	object, err := c.object(ctx, path, iface)
	if err != nil {
		return err
	}

	method := constants.PropertiesInterface + ".Set"

	if call := object.CallWithContext(ctx, method, 0, iface, property, godbus.MakeVariant(value)); call.Err != nil {
		return fmt.Errorf("setting property %s.%s of %q: %w", iface, property, path, call.Err)
	}

	return nil
}

func (c *client) object(ctx context.Context, path, iface string) (godbus.BusObject, error) {
	service, err := c.resolver.ResolveOwner(ctx, path, iface)
	if err != nil {
		return nil, fmt.Errorf("looking up service: %w", err)
	}

	return c.objector.Object(service, godbus.ObjectPath(path)), nil
}

type client struct {
	objector Objector
	resolver Resolver
}

// client must implement Client interface.
var _ Client = &client{}

// Object mapper client is the production Resolver.
var _ Resolver = objectmapper.Client(nil)
