package core

import (
	"strconv"
	"strings"

	"github.com/jmylchreest/taskdock/internal/model"
)

// LookupByIndex finds a program by its position (1-based for user-friendliness).
// Returns nil if index is out of bounds.
func LookupByIndex(entries []model.ProgramEntry, index int) *model.ProgramEntry {
	idx := index - 1
	if idx < 0 || idx >= len(entries) {
		return nil
	}
	return &entries[idx]
}

// LookupByName finds a program by name, preferring an exact match over a
// case-insensitive one.
func LookupByName(entries []model.ProgramEntry, name string) *model.ProgramEntry {
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i]
		}
	}
	for i := range entries {
		if strings.EqualFold(entries[i].Name, name) {
			return &entries[i]
		}
	}
	return nil
}

// LookupByPID finds the program owning pid.
func LookupByPID(entries []model.ProgramEntry, pid int) *model.ProgramEntry {
	for i := range entries {
		for _, inst := range entries[i].Instances {
			if inst.PID == pid {
				return &entries[i]
			}
		}
	}
	return nil
}

// Lookup resolves a user-supplied reference: a 1-based index, a name, or
// "pid:<n>".
func Lookup(entries []model.ProgramEntry, ref string) *model.ProgramEntry {
	if rest, ok := strings.CutPrefix(ref, "pid:"); ok {
		if pid, err := strconv.Atoi(rest); err == nil {
			return LookupByPID(entries, pid)
		}
		return nil
	}
	if idx, err := strconv.Atoi(ref); err == nil {
		return LookupByIndex(entries, idx)
	}
	return LookupByName(entries, ref)
}
