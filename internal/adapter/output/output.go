// Package output provides output formatters for program lists.
package output

import (
	"io"

	"github.com/jmylchreest/taskdock/internal/model"
)

// Formatter formats program entries for output.
type Formatter interface {
	// Format writes formatted entries to the writer.
	Format(w io.Writer, entries []model.ProgramEntry) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatDmenu FormatType = "dmenu"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatPlain FormatType = "plain"
	FormatPIDs  FormatType = "pids"
)

// Formats lists every supported format, for flag help and validation.
var Formats = []FormatType{FormatPlain, FormatJSON, FormatYAML, FormatDmenu, FormatPIDs}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter()
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	case FormatPIDs:
		return NewPIDsFormatter()
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template      string // Custom template for dmenu/plain format
	ShowIndex     bool   // Show 1-based index prefix
	ShowInstances bool   // List instances under each program (plain)
	TitleMaxLen   int    // Maximum title length (0 = unlimited)
	Separator     string // Field separator for dmenu format
}

// DefaultFormatterOptions returns sensible defaults.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:     true,
		ShowInstances: true,
		TitleMaxLen:   60,
		Separator:     " | ",
	}
}
