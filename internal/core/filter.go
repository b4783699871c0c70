package core

import (
	"github.com/sahilm/fuzzy"

	"github.com/jmylchreest/taskdock/internal/model"
)

// FilterOptions specifies criteria for filtering program entries.
type FilterOptions struct {
	RunningOnly bool   // Drop pinned programs that are not running
	PinnedOnly  bool   // Keep only pinned programs
	Match       string // Fuzzy match against name and instance titles
	Limit       int    // Maximum results (0=unlimited)
}

// programSource adapts entries for fuzzy matching. Each entry is matched
// against its name followed by its instance titles.
type programSource []model.ProgramEntry

func (s programSource) String(i int) string {
	out := s[i].Name
	for _, inst := range s[i].Instances {
		if inst.Title != "" {
			out += " " + inst.Title
		}
	}
	return out
}

func (s programSource) Len() int { return len(s) }

// Filter returns the entries matching opts. With a match query the result
// is ordered by match score; otherwise snapshot order is kept.
func Filter(entries []model.ProgramEntry, opts FilterOptions) []model.ProgramEntry {
	result := make([]model.ProgramEntry, 0, len(entries))
	for _, e := range entries {
		if opts.RunningOnly && !e.IsRunning {
			continue
		}
		if opts.PinnedOnly && !e.IsPinned {
			continue
		}
		result = append(result, e)
	}

	if opts.Match != "" {
		matches := fuzzy.FindFrom(opts.Match, programSource(result))
		ranked := make([]model.ProgramEntry, 0, len(matches))
		for _, m := range matches {
			ranked = append(ranked, result[m.Index])
		}
		result = ranked
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// CountRunning returns the number of running programs and their instances.
func CountRunning(entries []model.ProgramEntry) (programs, instances int) {
	for _, e := range entries {
		if e.IsRunning {
			programs++
			instances += len(e.Instances)
		}
	}
	return programs, instances
}

// Focused returns the program holding input focus, if any.
func Focused(entries []model.ProgramEntry) *model.ProgramEntry {
	for i := range entries {
		if entries[i].IsFocused() {
			return &entries[i]
		}
	}
	return nil
}
