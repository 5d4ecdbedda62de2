// Package journal reports bus errors, which hostpwrctl tolerates while waiting for
// confirmation, to systemd-journald, so they are not lost when the run ends with a timeout.
package journal

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/journal"
)

// Sender sends a single structured journal entry.
type Sender func(message string, priority journal.Priority, vars map[string]string) error

// Reporter writes tolerated errors to the journal.
type Reporter struct {
	identifier string
	send       Sender
}

// Enabled reports whether journald socket is available.
func Enabled() bool {
	return journal.Enabled()
}

// New returns reporter tagging entries with given syslog identifier.
func New(identifier string) *Reporter {
	return &Reporter{
		identifier: identifier,
		send:       journal.Send,
	}
}

// NewWithSender returns reporter using custom sender.
func NewWithSender(identifier string, send Sender) *Reporter {
	return &Reporter{
		identifier: identifier,
		send:       send,
	}
}

// Report sends an error entry describing failed operation. Failures to write to the journal are
// returned, but callers usually ignore them.
func (r *Reporter) Report(operation string, err error) error {
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": r.identifier,
		"OPERATION":         operation,
		"ERROR":             err.Error(),
	}

	if sendErr := r.send(fmt.Sprintf("%s: %v", operation, err), journal.PriErr, vars); sendErr != nil {
		return fmt.Errorf("sending journal entry: %w", sendErr)
	}

	return nil
}
