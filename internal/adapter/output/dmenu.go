package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize/english"

	"github.com/jmylchreest/taskdock/internal/model"
)

// DmenuFormatter formats programs for dmenu/rofi/fuzzel.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("dmenu").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes programs in dmenu format (one per line).
func (f *DmenuFormatter) Format(w io.Writer, entries []model.ProgramEntry) error {
	for i := range entries {
		line := f.formatLine(i+1, &entries[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatLine formats a single program line.
func (f *DmenuFormatter) formatLine(index int, e *model.ProgramEntry) string {
	// Use custom template if available
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, newTemplateData(index, e)); err == nil {
			return sanitizeTitle(buf.String(), 0)
		}
	}

	// Default format: [index] name [count] [title]
	var parts []string
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}

	parts = append(parts, e.Name)
	if e.IsRunning {
		parts = append(parts, english.Plural(len(e.Instances), "instance", ""))
	} else {
		parts = append(parts, programState(e))
	}

	if title := sanitizeTitle(representativeTitle(e), f.opts.TitleMaxLen); title != "" {
		parts = append(parts, title)
	}

	return strings.Join(parts, sep)
}

// templateData provides data for custom templates. Entry fields are
// promoted, so templates can use {{.Name}} and {{.IsRunning}} directly.
type templateData struct {
	Index int
	model.ProgramEntry
	Count int
	Title string
	State string
}

func newTemplateData(index int, e *model.ProgramEntry) templateData {
	return templateData{
		Index:        index,
		ProgramEntry: *e,
		Count:        len(e.Instances),
		Title:        representativeTitle(e),
		State:        programState(e),
	}
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			return truncate(s, maxLen)
		},
		"plural": func(n int, singular string) string {
			return english.Plural(n, singular, "")
		},
		"join": strings.Join,
	}
}

// representativeTitle returns the focused instance's title, falling back to
// the first titled instance.
func representativeTitle(e *model.ProgramEntry) string {
	if t := e.FocusedTitle(); t != "" {
		return t
	}
	for _, inst := range e.Instances {
		if inst.Title != "" {
			return inst.Title
		}
	}
	return ""
}

// programState names the display state of a program.
func programState(e *model.ProgramEntry) string {
	switch {
	case e.IsRunning && e.IsFocused():
		return "focused"
	case e.IsRunning && e.IsMinimized:
		return "minimized"
	case e.IsRunning:
		return "running"
	case e.Unresolved:
		return "unresolved"
	case e.IsPinned:
		return "pinned"
	default:
		return "stopped"
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// sanitizeTitle cleans up a window title for single-line display.
func sanitizeTitle(title string, maxLen int) string {
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.ReplaceAll(title, "\r", "")
	title = strings.ReplaceAll(title, "\t", " ")

	// Collapse multiple spaces
	for strings.Contains(title, "  ") {
		title = strings.ReplaceAll(title, "  ", " ")
	}

	return truncate(strings.TrimSpace(title), maxLen)
}
