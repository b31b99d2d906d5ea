// Package device opens command-line sessions to network devices.
package device

import (
	"context"

	"github.com/newtron-network/bulkcfg/pkg/inventory"
)

// Session is an open CLI session on one device. A Session is used by a
// single worker and is not safe for concurrent use.
type Session interface {
	// RunCommand sends one exec-mode command and returns its output with
	// the command echo and trailing prompt removed.
	RunCommand(ctx context.Context, command string) (string, error)

	// ApplyConfig enters configuration mode, sends every line, and leaves
	// configuration mode. The full transcript is returned, prompts and
	// echoed lines included, so rejected lines can be located.
	ApplyConfig(ctx context.Context, lines []string) (string, error)

	// SaveConfig persists the running configuration.
	SaveConfig(ctx context.Context) (string, error)

	// Disconnect closes the session.
	Disconnect() error
}

// Dialer opens sessions. Open failures are returned as *util.ConnectError.
type Dialer interface {
	Open(ctx context.Context, creds inventory.Credentials, address string) (Session, error)
}
