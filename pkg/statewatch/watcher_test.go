package statewatch_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/openbmc/hostpwrctl/pkg/dbus"
	"github.com/openbmc/hostpwrctl/pkg/statewatch"
)

func Test_Creating_watcher_adds_properties_changed_match_for_each_subscription(t *testing.T) {
	t.Parallel()

	var added [][]godbus.MatchOption

	signalRegistered := false

	connection := &dbus.MockConnection{
		AddMatchSignalF: func(options ...godbus.MatchOption) error {
			added = append(added, options)

			return nil
		},
		SignalF: func(chan<- *godbus.Signal) {
			signalRegistered = true
		},
	}

	if _, err := statewatch.New(connection, statewatch.DefaultSubscriptions()...); err != nil {
		t.Fatalf("Unexpected error creating watcher: %v", err)
	}

	expected := [][]godbus.MatchOption{
		{
			godbus.WithMatchObjectPath("/xyz/openbmc_project/state/chassis0"),
			godbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
			godbus.WithMatchMember("PropertiesChanged"),
			godbus.WithMatchArg(0, "xyz.openbmc_project.State.Chassis"),
		},
		{
			godbus.WithMatchObjectPath("/xyz/openbmc_project/state/host0"),
			godbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
			godbus.WithMatchMember("PropertiesChanged"),
			godbus.WithMatchArg(0, "xyz.openbmc_project.State.Host"),
		},
	}

	if !reflect.DeepEqual(expected, added) {
		t.Fatalf("Expected match options %v, got %v", expected, added)
	}

	if !signalRegistered {
		t.Fatalf("Expected signal channel to be registered")
	}
}

//nolint:funlen // Just many subtests.
func Test_Creating_watcher_fails_when(t *testing.T) {
	t.Parallel()

	t.Run("no_connection_is_given", func(t *testing.T) {
		t.Parallel()

		if _, err := statewatch.New(nil, statewatch.DefaultSubscriptions()...); err == nil {
			t.Fatalf("Expected error creating watcher")
		}
	})

	t.Run("no_subscriptions_are_given", func(t *testing.T) {
		t.Parallel()

		if _, err := statewatch.New(&dbus.MockConnection{}); err == nil {
			t.Fatalf("Expected error creating watcher")
		}
	})

	t.Run("adding_D-Bus_filter_fails", func(t *testing.T) {
		t.Parallel()

		expectedError := fmt.Errorf("match signal failed")

		calls := 0
		removed := 0

		connection := &dbus.MockConnection{
			AddMatchSignalF: func(...godbus.MatchOption) error {
				calls++

				if calls == 2 {
					return expectedError
				}

				return nil
			},
			RemoveMatchSignalF: func(...godbus.MatchOption) error {
				removed++

				return nil
			},
		}

		watcher, err := statewatch.New(connection, statewatch.DefaultSubscriptions()...)
		if !errors.Is(err, expectedError) {
			t.Fatalf("Got unexpected error while creating watcher, expected %q, got %q", expectedError, err)
		}

		if watcher != nil {
			t.Fatalf("Expected watcher to be nil when creating fails")
		}

		t.Run("and_removes_already_added_filters", func(t *testing.T) {
			if removed != 1 {
				t.Fatalf("Expected 1 filter to be removed, got %d", removed)
			}
		})
	})
}

func Test_Closing_watcher_removes_filters_and_signal_channel(t *testing.T) {
	t.Parallel()

	removedFilters := 0
	signalRemoved := false

	connection := &dbus.MockConnection{
		RemoveMatchSignalF: func(...godbus.MatchOption) error {
			removedFilters++

			return nil
		},
		RemoveSignalF: func(chan<- *godbus.Signal) {
			signalRemoved = true
		},
	}

	watcher, err := statewatch.New(connection, statewatch.DefaultSubscriptions()...)
	if err != nil {
		t.Fatalf("Unexpected error creating watcher: %v", err)
	}

	if err := watcher.Close(); err != nil {
		t.Fatalf("Unexpected error closing watcher: %v", err)
	}

	if removedFilters != 2 {
		t.Fatalf("Expected 2 filters to be removed, got %d", removedFilters)
	}

	if !signalRemoved {
		t.Fatalf("Expected signal channel to be removed")
	}
}

//nolint:funlen // Many subtests.
func Test_Receiving_notifications(t *testing.T) {
	t.Parallel()

	t.Run("forwards_signals_in_arrival_order_skipping_malformed_ones", func(t *testing.T) {
		t.Parallel()

		watcher, signals := newWatcher(t)

		rcvr := make(chan statewatch.Notification)
		stop := make(chan struct{})
		done := make(chan struct{})

		go func() {
			watcher.ReceiveNotifications(rcvr, stop)
			close(done)
		}()

		signals <- propertiesChanged("/xyz/openbmc_project/state/chassis0", "xyz.openbmc_project.State.Chassis",
			map[string]godbus.Variant{"CurrentPowerState": godbus.MakeVariant("first")})
		signals <- &godbus.Signal{Name: "foo.Bar.Baz"}
		signals <- propertiesChanged("/xyz/openbmc_project/state/host0", "xyz.openbmc_project.State.Host",
			map[string]godbus.Variant{"CurrentHostState": godbus.MakeVariant("second")})

		for _, expected := range []string{"first", "second"} {
			select {
			case n := <-rcvr:
				if got := n.Changed["CurrentPowerState"] + n.Changed["CurrentHostState"]; got != expected {
					t.Fatalf("Expected notification %q, got %q", expected, got)
				}
			case <-time.After(time.Second):
				t.Fatalf("Timed out waiting for notification %q", expected)
			}
		}

		close(stop)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("Expected receiving to stop after closing stop channel")
		}
	})

	t.Run("returns_when_stopped_while_notification_is_not_consumed", func(t *testing.T) {
		t.Parallel()

		watcher, signals := newWatcher(t)

		stop := make(chan struct{})
		done := make(chan struct{})

		go func() {
			watcher.ReceiveNotifications(make(chan statewatch.Notification), stop)
			close(done)
		}()

		signals <- propertiesChanged("/foo", "foo.Bar", map[string]godbus.Variant{})

		close(stop)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("Expected receiving to stop after closing stop channel")
		}
	})
}

//nolint:funlen // Many subtests.
func Test_Decoding_signal(t *testing.T) {
	t.Parallel()

	t.Run("keeps_string_properties_and_invalidated_list", func(t *testing.T) {
		t.Parallel()

		signal := propertiesChanged("/xyz/openbmc_project/state/host0", "xyz.openbmc_project.State.Host",
			map[string]godbus.Variant{
				"CurrentHostState": godbus.MakeVariant("xyz.openbmc_project.State.Host.HostState.Off"),
				"BootProgress":     godbus.MakeVariant(uint32(3)),
			})
		signal.Body[2] = []string{"RequestedHostTransition"}

		n, err := statewatch.Decode(signal)
		if err != nil {
			t.Fatalf("Unexpected error decoding signal: %v", err)
		}

		expected := statewatch.Notification{
			Path:        "/xyz/openbmc_project/state/host0",
			Interface:   "xyz.openbmc_project.State.Host",
			Changed:     map[string]string{"CurrentHostState": "xyz.openbmc_project.State.Host.HostState.Off"},
			Invalidated: []string{"RequestedHostTransition"},
		}

		if diff := cmp.Diff(expected, n); diff != "" {
			t.Fatalf("Unexpected notification (-expected +got):\n%s", diff)
		}
	})

	for name, signal := range map[string]*godbus.Signal{
		"nil_signal":            nil,
		"other_signal_name":     {Name: "org.freedesktop.DBus.NameOwnerChanged", Body: []interface{}{"a", "b", "c"}},
		"short_body":            {Name: statewatch.PropertiesChangedSignal, Body: []interface{}{"foo.Bar"}},
		"non_string_interface":  {Name: statewatch.PropertiesChangedSignal, Body: []interface{}{1, map[string]godbus.Variant{}, []string{}}},
		"malformed_changed_set": {Name: statewatch.PropertiesChangedSignal, Body: []interface{}{"foo.Bar", "baz", []string{}}},
	} {
		name, signal := name, signal

		t.Run("fails_for_"+name, func(t *testing.T) {
			t.Parallel()

			if _, err := statewatch.Decode(signal); err == nil {
				t.Fatalf("Expected error decoding signal")
			}
		})
	}
}

func Test_Decoding_signal_distinguishes_other_signals_from_malformed_ones(t *testing.T) {
	t.Parallel()

	t.Run("other_signals_are_unexpected", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"org.freedesktop.DBus.NameAcquired", "org.freedesktop.DBus.NameLost"} {
			_, err := statewatch.Decode(&godbus.Signal{Name: name, Body: []interface{}{"foo"}})
			if !errors.Is(err, statewatch.ErrUnexpectedSignal) {
				t.Fatalf("Expected unexpected signal error for %q, got %v", name, err)
			}
		}
	})

	t.Run("malformed_properties_changed_is_not_unexpected", func(t *testing.T) {
		t.Parallel()

		_, err := statewatch.Decode(&godbus.Signal{Name: statewatch.PropertiesChangedSignal, Body: []interface{}{"foo.Bar"}})
		if err == nil {
			t.Fatalf("Expected error decoding malformed signal")
		}

		if errors.Is(err, statewatch.ErrUnexpectedSignal) {
			t.Fatalf("Malformed PropertiesChanged must not be reported as unexpected signal: %v", err)
		}
	})
}

func newWatcher(t *testing.T) (statewatch.Watcher, chan<- *godbus.Signal) {
	t.Helper()

	var signals chan<- *godbus.Signal

	connection := &dbus.MockConnection{
		SignalF: func(ch chan<- *godbus.Signal) {
			signals = ch
		},
	}

	watcher, err := statewatch.New(connection, statewatch.DefaultSubscriptions()...)
	if err != nil {
		t.Fatalf("Unexpected error creating watcher: %v", err)
	}

	return watcher, signals
}

func propertiesChanged(path, iface string, changed map[string]godbus.Variant) *godbus.Signal {
	return &godbus.Signal{
		Path: godbus.ObjectPath(path),
		Name: statewatch.PropertiesChangedSignal,
		Body: []interface{}{iface, changed, []string{}},
	}
}
