// Package model defines the core data structures for taskdock.
package model

// ProcessStatus is the lifecycle state reported by a process registry.
type ProcessStatus int

const (
	StatusRunning ProcessStatus = iota
	StatusExited
)

// String returns the string representation of the status.
func (s ProcessStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusExited:
		return "exited"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ProcessStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProcessRecord is a snapshot of one process as seen by a process registry.
// Records are read-only outside the registry that produced them.
type ProcessRecord struct {
	PID         int           `json:"pid"`
	ProgramName string        `json:"program_name"`
	Status      ProcessStatus `json:"status"`
	IsMinimized bool          `json:"is_minimized"`

	// Background marks helper processes that should only surface in the
	// taskbar while they own at least one window.
	Background bool `json:"background,omitempty"`

	// CLILaunchedFromTerminal is set for command-line programs started from
	// an interactive terminal session.
	CLILaunchedFromTerminal bool `json:"cli_launched_from_terminal,omitempty"`

	// CLITerminal is set for the interactive shell of a terminal session.
	CLITerminal bool `json:"cli_terminal,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Running reports whether the process is alive.
func (p ProcessRecord) Running() bool {
	return p.Status == StatusRunning
}
