package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/taskdock/internal/model"
)

// PIDsFormatter outputs the pid of every instance, one per line.
// Useful for piping to other commands (e.g., xargs kill).
type PIDsFormatter struct{}

// NewPIDsFormatter creates a new pids formatter.
func NewPIDsFormatter() *PIDsFormatter {
	return &PIDsFormatter{}
}

// Format writes each distinct pid once, in program order.
func (f *PIDsFormatter) Format(w io.Writer, entries []model.ProgramEntry) error {
	seen := make(map[int]bool)
	for _, e := range entries {
		for _, inst := range e.Instances {
			if inst.PID == 0 || seen[inst.PID] {
				continue
			}
			seen[inst.PID] = true
			if _, err := fmt.Fprintln(w, inst.PID); err != nil {
				return err
			}
		}
	}
	return nil
}
