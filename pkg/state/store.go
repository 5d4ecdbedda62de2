package state

import (
	"errors"
	"fmt"
)

// ErrTargetAlreadySet is returned when expected target is installed more than once.
var ErrTargetAlreadySet = errors.New("expected target already set")

// Target is a pair of power states a transition is expected to reach.
type Target struct {
	Chassis Power
	Host    Power
}

func (t Target) String() string {
	return fmt.Sprintf("chassis %s, host %s", t.Chassis, t.Host)
}

// Store holds last observed chassis and host states and the expected target.
//
// Store is not safe for concurrent use. It must only be accessed from the goroutine running the
// event loop, which seeds it and applies notifications one at a time.
type Store struct {
	chassis State
	host    State
	target  *Target
}

// Seed sets both current states without evaluating completion.
func (s *Store) Seed(chassis, host State) {
	s.chassis = chassis
	s.host = host
}

// Expect installs the expected target. It may be called only once.
func (s *Store) Expect(target Target) error {
	if s.target != nil {
		return fmt.Errorf("installing %s: %w", target, ErrTargetAlreadySet)
	}

	s.target = &target

	return nil
}

// Target returns the expected target and whether it was set.
func (s *Store) Target() (Target, bool) {
	if s.target == nil {
		return Target{}, false
	}

	return *s.target, true
}

// Chassis returns last observed chassis state.
func (s *Store) Chassis() State {
	return s.chassis
}

// Host returns last observed host state.
func (s *Store) Host() State {
	return s.host
}

// RecordChassis stores new chassis state and reports whether the target is now reached.
func (s *Store) RecordChassis(chassis State) bool {
	s.chassis = chassis

	return s.Complete()
}

// RecordHost stores new host state and reports whether the target is now reached.
func (s *Store) RecordHost(host State) bool {
	s.host = host

	return s.Complete()
}

// Complete reports whether the target is set and both current states match it.
func (s *Store) Complete() bool {
	if s.target == nil {
		return false
	}

	return s.chassis.Power == s.target.Chassis && s.host.Power == s.target.Host
}
