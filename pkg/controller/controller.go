// Package controller implements the hostpwrctl event loop, which requests a power state
// transition and waits until chassis and host report the expected states or the
// confirmation timeout expires.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/looplab/fsm"
	"k8s.io/klog/v2"

	"github.com/openbmc/hostpwrctl/pkg/constants"
	"github.com/openbmc/hostpwrctl/pkg/state"
	"github.com/openbmc/hostpwrctl/pkg/statewatch"
	"github.com/openbmc/hostpwrctl/pkg/transition"
)

var (
	// ErrConfirmationTimeout is returned when expected states are not reported in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrInterrupted is returned when the context is cancelled while waiting for confirmation.
	ErrInterrupted = errors.New("interrupted")

	// ErrAlreadyRun is returned when Run is called more than once.
	ErrAlreadyRun = errors.New("controller already run")
)

// DefaultTimeout is used when no confirmation timeout is configured.
const DefaultTimeout = 30 * time.Second

// Config represents configurable options for controller.
type Config struct {
	Properties PropertyClient
	Receiver   NotificationReceiver
	Request    transition.Request
	Timeout    time.Duration
	Clock      clockwork.Clock
	Output     io.Writer
	Reporter   ErrorReporter
}

// PropertyClient describes dependency of object reading and writing remote properties.
type PropertyClient interface {
	Get(ctx context.Context, path, iface, property string) (string, error)
	Set(ctx context.Context, path, iface, property, value string) error
}

// NotificationReceiver describes dependency of object providing property change notifications.
type NotificationReceiver interface {
	ReceiveNotifications(rcvr chan<- statewatch.Notification, stop <-chan struct{})
}

// ErrorReporter receives bus errors which are tolerated while waiting for confirmation.
type ErrorReporter interface {
	Report(operation string, err error) error
}

// Controller represents capabilities of the event loop.
type Controller interface {
	Run(ctx context.Context) error
}

const (
	stateIdle       = "idle"
	stateRunning    = "running"
	stateTerminated = "terminated"

	eventStart     = "start"
	eventTerminate = "terminate"
)

type controller struct {
	properties PropertyClient
	receiver   NotificationReceiver
	request    transition.Request
	timeout    time.Duration
	clock      clockwork.Clock
	out        io.Writer
	reporter   ErrorReporter

	// store and outcome are only accessed by the goroutine executing Run.
	store     *state.Store
	outcome   error
	lifecycle *fsm.FSM
}

// New returns initialized controller.
func New(config *Config) (Controller, error) {
	if config.Properties == nil {
		return nil, fmt.Errorf("no property client configured")
	}

	if config.Receiver == nil {
		return nil, fmt.Errorf("no notification receiver configured")
	}

	if config.Request.Operation == "" {
		return nil, fmt.Errorf("no request configured")
	}

	if !config.Request.ReadOnly() && config.Request.Target == nil {
		return nil, fmt.Errorf("request %q writes a property but has no target", config.Request.Operation)
	}

	if config.Timeout < 0 {
		return nil, fmt.Errorf("timeout can't be negative, got %v", config.Timeout)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	return &controller{
		properties: config.Properties,
		receiver:   config.Receiver,
		request:    config.Request,
		timeout:    timeout,
		clock:      clock,
		out:        out,
		reporter:   config.Reporter,
		store:      &state.Store{},
		lifecycle:  newLifecycle(),
	}, nil
}

func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{stateIdle}, Dst: stateRunning},
			{Name: eventTerminate, Src: []string{stateRunning}, Dst: stateTerminated},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				klog.V(5).Infof("Controller %s -> %s", e.Src, e.Dst)
			},
		},
	)
}

// Run seeds current states, starts requested transition and waits for its confirmation. It
// returns nil when the transition is confirmed or there is nothing to do.
func (c *controller) Run(ctx context.Context) error {
	if !c.lifecycle.Is(stateIdle) {
		return ErrAlreadyRun
	}

	klog.V(5).Info("Starting controller")

	defer klog.V(5).Info("Stopping controller")

	c.seed(ctx)

	// Lifecycle transitions must complete even when ctx is already cancelled.
	if err := c.lifecycle.Event(context.WithoutCancel(ctx), eventStart); err != nil {
		return fmt.Errorf("starting: %w", err)
	}

	timer := c.clock.NewTimer(c.timeout)
	defer timer.Stop()

	notifications := make(chan statewatch.Notification)
	stop := make(chan struct{})

	defer close(stop)

	go c.receiver.ReceiveNotifications(notifications, stop)

	if done := c.runAction(ctx); done {
		return c.terminate(ctx, nil)
	}

	for {
		select {
		case <-ctx.Done():
			c.println("Interrupted while waiting for confirmation.")

			return c.terminate(ctx, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err()))
		case <-timer.Chan():
			c.println(fmt.Sprintf("Unable to confirm operation success within timeout period (%s).", c.timeout))

			return c.terminate(ctx, ErrConfirmationTimeout)
		case n := <-notifications:
			if c.handle(n) {
				c.println("Power state transition confirmed.")

				return c.terminate(ctx, nil)
			}
		}
	}
}

// seed reads current chassis and host states. Failed reads leave the state unknown.
func (c *controller) seed(ctx context.Context) {
	chassis := c.get(ctx, constants.ChassisPath, constants.ChassisInterface, constants.ChassisStateProperty)
	host := c.get(ctx, constants.HostPath, constants.HostInterface, constants.HostStateProperty)

	c.store.Seed(state.ParseChassis(chassis), state.ParseHost(host))

	klog.V(2).Infof("Initial states: chassis %q, host %q", chassis, host)
}

func (c *controller) get(ctx context.Context, path, iface, property string) string {
	value, err := c.properties.Get(ctx, path, iface, property)
	if err != nil {
		c.tolerate("getting "+property, err)

		return ""
	}

	return value
}

// runAction performs the requested operation and reports whether the run is already done.
func (c *controller) runAction(ctx context.Context) bool {
	r := c.request

	if r.ReadOnly() {
		c.println(fmt.Sprintf("Current Chassis state: %s", c.store.Chassis()))
		c.println(fmt.Sprintf("Current Host state: %s", c.store.Host()))

		return true
	}

	if r.Satisfied(c.store.Chassis()) {
		c.println(r.Noop)

		return true
	}

	if err := c.store.Expect(*r.Target); err != nil {
		klog.Errorf("Keeping previous target: %v", err)
	}

	w := r.Write

	// The result of the write is not used to update states, only notifications are. A failed
	// write is left for the confirmation timeout to report.
	if err := c.properties.Set(ctx, w.Path, w.Interface, w.Property, w.Value); err != nil {
		c.tolerate("setting "+w.Property, err)
	}

	c.println(r.Description)

	return false
}

// handle applies notification to the store and reports whether the target is reached.
func (c *controller) handle(n statewatch.Notification) bool {
	switch n.Interface {
	case constants.ChassisInterface:
		raw, ok := n.Changed[constants.ChassisStateProperty]
		if !ok {
			return false
		}

		chassis := state.ParseChassis(raw)

		c.println(fmt.Sprintf("Current Chassis State: %s", chassis))

		return c.store.RecordChassis(chassis)
	case constants.HostInterface:
		raw, ok := n.Changed[constants.HostStateProperty]
		if !ok {
			return false
		}

		host := state.ParseHost(raw)

		c.println(fmt.Sprintf("Current Host State: %s", host))

		return c.store.RecordHost(host)
	default:
		klog.V(4).Infof("Ignoring notification for interface %q on %q", n.Interface, n.Path)

		return false
	}
}

// terminate moves the lifecycle to terminated state. Only the first outcome is kept.
func (c *controller) terminate(ctx context.Context, outcome error) error {
	if err := c.lifecycle.Event(context.WithoutCancel(ctx), eventTerminate); err != nil {
		klog.V(4).Infof("Ignoring outcome %v: %v", outcome, err)

		return c.outcome
	}

	c.outcome = outcome

	return outcome
}

func (c *controller) tolerate(operation string, err error) {
	klog.Errorf("Failed %s, waiting for confirmation anyway: %v", operation, err)

	if c.reporter == nil {
		return
	}

	if reportErr := c.reporter.Report(operation, err); reportErr != nil {
		klog.Warningf("Failed reporting error: %v", reportErr)
	}
}

func (c *controller) println(line string) {
	//nolint:errcheck // Nothing sensible can be done when writing to the output fails.
	fmt.Fprintln(c.out, line)
}
