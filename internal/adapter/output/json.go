package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/taskdock/internal/model"
)

// JSONFormatter formats programs as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes programs as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, entries []model.ProgramEntry) error {
	if entries == nil {
		entries = []model.ProgramEntry{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

// FormatSingle writes a single program as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, e *model.ProgramEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(e)
}

// YAMLFormatter formats programs as a YAML sequence.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes programs as YAML.
func (f *YAMLFormatter) Format(w io.Writer, entries []model.ProgramEntry) error {
	if entries == nil {
		entries = []model.ProgramEntry{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(entries); err != nil {
		return err
	}
	return encoder.Close()
}
