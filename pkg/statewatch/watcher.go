// Package statewatch subscribes to PropertiesChanged signals of the chassis and host state
// objects and delivers them as notifications, in the order they arrive on the bus.
package statewatch

import (
	"errors"
	"fmt"

	godbus "github.com/godbus/dbus/v5"
	"k8s.io/klog/v2"

	"github.com/openbmc/hostpwrctl/pkg/constants"
)

const (
	// PropertiesChangedSignal is a full name of the PropertiesChanged signal.
	PropertiesChangedSignal = constants.PropertiesInterface + "." + constants.PropertiesChangedMember

	signalBuffer = 32
)

// ErrUnexpectedSignal is returned when decoding a signal other than PropertiesChanged.
var ErrUnexpectedSignal = errors.New("unexpected signal")

// Subscription identifies an object and interface notifications are received for.
type Subscription struct {
	Path      string
	Interface string
}

// DefaultSubscriptions returns chassis and host state subscriptions.
func DefaultSubscriptions() []Subscription {
	return []Subscription{
		{Path: constants.ChassisPath, Interface: constants.ChassisInterface},
		{Path: constants.HostPath, Interface: constants.HostInterface},
	}
}

// Notification is a decoded PropertiesChanged signal. Only changed properties holding
// string values are included in Changed.
type Notification struct {
	Path        string
	Interface   string
	Changed     map[string]string
	Invalidated []string
}

// Watcher delivers notifications for subscribed objects.
type Watcher interface {
	// ReceiveNotifications converts received signals to notifications and emits them into a
	// given channel. It returns when stop channel gets closed.
	ReceiveNotifications(rcvr chan<- Notification, stop <-chan struct{})

	// Close removes signal subscriptions. Receiving notifications must be stopped before
	// closing. The underlying connection is not closed.
	Close() error
}

// DBusConnection is set of methods which watcher expects D-Bus connection to implement.
type DBusConnection interface {
	AddMatchSignal(...godbus.MatchOption) error
	RemoveMatchSignal(...godbus.MatchOption) error
	Signal(chan<- *godbus.Signal)
	RemoveSignal(chan<- *godbus.Signal)
}

type watcher struct {
	conn    DBusConnection
	matches [][]godbus.MatchOption
	ch      chan *godbus.Signal
}

// New adds match rules for given subscriptions and starts buffering signals. Signals
// emitted after New returns are never missed.
func New(conn DBusConnection, subscriptions ...Subscription) (Watcher, error) {
	if conn == nil {
		return nil, fmt.Errorf("no connection given")
	}

	if len(subscriptions) == 0 {
		return nil, fmt.Errorf("no subscriptions given")
	}

	w := &watcher{
		conn: conn,
	}

	for _, s := range subscriptions {
		matchOptions := []godbus.MatchOption{
			godbus.WithMatchObjectPath(godbus.ObjectPath(s.Path)),
			godbus.WithMatchInterface(constants.PropertiesInterface),
			godbus.WithMatchMember(constants.PropertiesChangedMember),
			godbus.WithMatchArg(0, s.Interface),
		}

		if err := conn.AddMatchSignal(matchOptions...); err != nil {
			w.removeMatches()

			return nil, fmt.Errorf("adding filter for %q: %w", s.Path, err)
		}

		w.matches = append(w.matches, matchOptions)
	}

	w.ch = make(chan *godbus.Signal, signalBuffer)
	conn.Signal(w.ch)

	return w, nil
}

// ReceiveNotifications forwards notifications until the stop channel is closed.
func (w *watcher) ReceiveNotifications(rcvr chan<- Notification, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case signal := <-w.ch:
			notification, err := Decode(signal)
			if errors.Is(err, ErrUnexpectedSignal) {
				klog.V(4).Infof("Ignoring signal: %v", err)

				continue
			}

			if err != nil {
				klog.Warningf("Ignoring malformed signal: %v", err)

				continue
			}

			select {
			case rcvr <- notification:
			case <-stop:
				return
			}
		}
	}
}

// Close removes signal channel and match rules.
func (w *watcher) Close() error {
	w.conn.RemoveSignal(w.ch)

	return w.removeMatches()
}

func (w *watcher) removeMatches() error {
	var firstErr error

	for _, m := range w.matches {
		if err := w.conn.RemoveMatchSignal(m...); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("removing filter: %w", err)
		}
	}

	w.matches = nil

	return firstErr
}

// Decode converts PropertiesChanged signal into notification.
func Decode(signal *godbus.Signal) (Notification, error) {
	if signal == nil {
		return Notification{}, fmt.Errorf("nil signal")
	}

	if signal.Name != PropertiesChangedSignal {
		return Notification{}, fmt.Errorf("%w %q from %q", ErrUnexpectedSignal, signal.Name, signal.Path)
	}

	//nolint:gomnd // Interface, changed properties and invalidated properties.
	if len(signal.Body) != 3 {
		return Notification{}, fmt.Errorf("signal from %q has %d body fields, expected 3", signal.Path, len(signal.Body))
	}

	iface, ok := signal.Body[0].(string)
	if !ok {
		return Notification{}, fmt.Errorf("signal from %q has interface of type %T", signal.Path, signal.Body[0])
	}

	changed, ok := signal.Body[1].(map[string]godbus.Variant)
	if !ok {
		return Notification{}, fmt.Errorf("signal from %q has changed properties of type %T", signal.Path, signal.Body[1])
	}

	invalidated, _ := signal.Body[2].([]string)

	n := Notification{
		Path:        string(signal.Path),
		Interface:   iface,
		Changed:     make(map[string]string, len(changed)),
		Invalidated: invalidated,
	}

	for name, value := range changed {
		s, ok := value.Value().(string)
		if !ok {
			klog.V(4).Infof("Skipping property %s.%s with signature %q", iface, name, value.Signature())

			continue
		}

		n.Changed[name] = s
	}

	return n, nil
}
