package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize/english"

	"github.com/jmylchreest/taskdock/internal/model"
)

// PlainFormatter formats programs as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes programs as plain text.
func (f *PlainFormatter) Format(w io.Writer, entries []model.ProgramEntry) error {
	for i := range entries {
		if err := f.formatEntry(w, i+1, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// formatEntry formats a single program and, optionally, its instances.
func (f *PlainFormatter) formatEntry(w io.Writer, index int, e *model.ProgramEntry) error {
	// Use custom template if available
	if f.template != nil {
		return f.template.Execute(w, newTemplateData(index, e))
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}

	sb.WriteString(e.Name)
	if e.IsRunning {
		sb.WriteString(" (" + english.Plural(len(e.Instances), "instance", "") + ")")
	}
	sb.WriteString(" " + programState(e))
	if e.IsPinned {
		sb.WriteString(" *")
	}
	sb.WriteString("\n")

	if f.opts.ShowInstances {
		for _, inst := range e.Instances {
			sb.WriteString("    " + formatInstance(inst, f.opts.TitleMaxLen) + "\n")
		}
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}

// formatInstance renders one instance as "pid window title [flags]".
func formatInstance(inst model.InstanceRef, titleMaxLen int) string {
	parts := []string{strconv.Itoa(inst.PID)}
	if inst.HasWindow() {
		parts = append(parts, inst.WindowID)
	} else {
		parts = append(parts, "-")
	}
	if title := sanitizeTitle(inst.Title, titleMaxLen); title != "" {
		parts = append(parts, title)
	}

	var flags []string
	if inst.IsFocused {
		flags = append(flags, "focused")
	}
	if inst.IsMinimized {
		flags = append(flags, "minimized")
	}
	if inst.HasWindow() && !inst.IsMainWindow {
		flags = append(flags, "secondary")
	}
	if len(flags) > 0 {
		parts = append(parts, "["+strings.Join(flags, ",")+"]")
	}
	return strings.Join(parts, " ")
}

// FormatField outputs a specific field from a program entry.
func FormatField(e *model.ProgramEntry, field string) string {
	switch strings.ToLower(field) {
	case "name", "program":
		return e.Name
	case "pid", "representative_pid":
		if e.RepresentativePID == 0 {
			return ""
		}
		return strconv.Itoa(e.RepresentativePID)
	case "count", "instances":
		return strconv.Itoa(len(e.Instances))
	case "title":
		return representativeTitle(e)
	case "state":
		return programState(e)
	case "window", "window_id":
		for _, inst := range e.Instances {
			if inst.IsFocused && inst.HasWindow() {
				return inst.WindowID
			}
		}
		for _, inst := range e.Instances {
			if inst.HasWindow() {
				return inst.WindowID
			}
		}
		return ""
	default:
		return e.Name
	}
}
