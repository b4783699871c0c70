package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/taskdock/internal/core"
	"github.com/jmylchreest/taskdock/internal/model"
)

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text       string `json:"text"`
	Alt        string `json:"alt,omitempty"`
	Tooltip    string `json:"tooltip,omitempty"`
	Class      string `json:"class,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

// statusData is the template input for the status text and tooltip.
type statusData struct {
	Running   int
	Instances int
	Pinned    int
	Focused   string
	Programs  []templateData
}

// BuildStatus renders the Waybar status for entries. Only running programs
// are listed in .Programs.
func BuildStatus(entries []model.ProgramEntry, textTmpl, tooltipTmpl string) (WaybarStatus, error) {
	running, instances := core.CountRunning(entries)
	data := statusData{
		Running:   running,
		Instances: instances,
	}
	for i := range entries {
		e := &entries[i]
		if e.IsPinned {
			data.Pinned++
		}
		if e.IsRunning {
			data.Programs = append(data.Programs, newTemplateData(len(data.Programs)+1, e))
		}
	}
	if f := core.Focused(entries); f != nil {
		data.Focused = f.Name
	}

	if running == 0 {
		return WaybarStatus{Text: "", Alt: "empty", Class: "empty"}, nil
	}

	text, err := renderTemplate("status", textTmpl, data)
	if err != nil {
		return WaybarStatus{}, err
	}
	tooltip, err := renderTemplate("tooltip", tooltipTmpl, data)
	if err != nil {
		return WaybarStatus{}, err
	}

	class := "running"
	if data.Focused != "" {
		class = "focused"
	}
	return WaybarStatus{
		Text:       strings.TrimSpace(text),
		Alt:        class,
		Tooltip:    strings.TrimRight(tooltip, "\n"),
		Class:      class,
		Percentage: min(running, 100),
	}, nil
}

// WriteStatus encodes status as a single JSON line.
func WriteStatus(w io.Writer, status WaybarStatus) error {
	return json.NewEncoder(w).Encode(status)
}

func renderTemplate(name, text string, data any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid %s template: %w", name, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return sb.String(), nil
}
