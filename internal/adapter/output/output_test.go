package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/model"
)

func testPrograms() []model.ProgramEntry {
	return []model.ProgramEntry{
		{
			Name:              "firefox",
			RepresentativePID: 101,
			IsRunning:         true,
			IsPinned:          true,
			Instances: []model.InstanceRef{
				{PID: 101, WindowID: "0x1000001", IsMainWindow: true, Title: "Mozilla Firefox", IsFocused: true},
				{PID: 101, WindowID: "0x1000002", Title: "Downloads"},
			},
		},
		{
			Name:              "kitty",
			RepresentativePID: 201,
			IsRunning:         true,
			IsMinimized:       true,
			Instances: []model.InstanceRef{
				{PID: 201, WindowID: "0x2000001", IsMainWindow: true, Title: "htop", IsMinimized: true},
			},
		},
		{
			Name:      "editor",
			IsPinned:  true,
			Instances: []model.InstanceRef{},
		},
	}
}

func TestDmenuFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	formatter := NewDmenuFormatter(DefaultFormatterOptions())
	require.NoError(t, formatter.Format(&buf, testPrograms()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1 | firefox | 2 instances | Mozilla Firefox", lines[0])
	assert.Equal(t, "2 | kitty | 1 instance | htop", lines[1])
	assert.Equal(t, "3 | editor | pinned", lines[2])
}

func TestDmenuFormatter_NoIndex(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.ShowIndex = false
	opts.Separator = "\t"
	formatter := NewDmenuFormatter(opts)
	require.NoError(t, formatter.Format(&buf, testPrograms()[:1]))

	assert.Equal(t, "firefox\t2 instances\tMozilla Firefox\n", buf.String())
}

func TestDmenuFormatter_DefaultTemplate(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = config.DefaultDmenuTmpl
	formatter := NewDmenuFormatter(opts)
	require.NoError(t, formatter.Format(&buf, testPrograms()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1 | firefox (2) - Mozilla Firefox", lines[0])
	assert.Equal(t, "2 | kitty (1) - htop", lines[1])
	assert.Equal(t, "3 | editor", lines[2])
}

func TestDmenuFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Name}}:{{.State}}:{{plural .Count \"window\"}}:{{truncate .Title 6}}"
	formatter := NewDmenuFormatter(opts)
	require.NoError(t, formatter.Format(&buf, testPrograms()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "firefox:focused:2 windows:Moz...", lines[0])
	assert.Equal(t, "kitty:minimized:1 window:htop", lines[1])
	assert.Equal(t, "editor:pinned:0 windows:", lines[2])
}

func TestDmenuFormatter_InvalidTemplateFallsBack(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Name"
	formatter := NewDmenuFormatter(opts)
	require.NoError(t, formatter.Format(&buf, testPrograms()[:1]))

	assert.Equal(t, "1 | firefox | 2 instances | Mozilla Firefox\n", buf.String())
}

func TestDmenuFormatter_TruncateTitle(t *testing.T) {
	entries := []model.ProgramEntry{{
		Name:      "term",
		IsRunning: true,
		Instances: []model.InstanceRef{{PID: 1, WindowID: "0x1", Title: "a very long\nwindow title that goes on"}},
	}}
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.TitleMaxLen = 20
	require.NoError(t, NewDmenuFormatter(opts).Format(&buf, entries))

	output := buf.String()
	assert.Contains(t, output, "a very long windo...")
	assert.NotContains(t, output, "goes on")
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	formatter := NewJSONFormatter(DefaultFormatterOptions())
	require.NoError(t, formatter.Format(&buf, testPrograms()))

	var result []model.ProgramEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	require.Len(t, result, 3)
	assert.Equal(t, "firefox", result[0].Name)
	assert.Len(t, result[0].Instances, 2)
	assert.True(t, result[2].IsPinned)
}

func TestJSONFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).Format(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestJSONFormatter_FormatSingle(t *testing.T) {
	var buf bytes.Buffer

	e := testPrograms()[1]
	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).FormatSingle(&buf, &e))

	var result model.ProgramEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "kitty", result.Name)
	assert.True(t, result.IsMinimized)
}

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewYAMLFormatter().Format(&buf, testPrograms()))
	assert.Contains(t, buf.String(), "- name: firefox")

	var result []model.ProgramEntry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &result))
	require.Len(t, result, 3)
	assert.Equal(t, 101, result[0].RepresentativePID)
	assert.Equal(t, "htop", result[1].Instances[0].Title)
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	formatter := NewPlainFormatter(DefaultFormatterOptions())
	require.NoError(t, formatter.Format(&buf, testPrograms()))

	expected := `[1] firefox (2 instances) focused *
    101 0x1000001 Mozilla Firefox [focused]
    101 0x1000002 Downloads [secondary]
[2] kitty (1 instance) minimized
    201 0x2000001 htop [minimized]
[3] editor pinned *
`
	assert.Equal(t, expected, buf.String())
}

func TestPlainFormatter_NoInstances(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.ShowInstances = false
	opts.ShowIndex = false
	require.NoError(t, NewPlainFormatter(opts).Format(&buf, testPrograms()[:2]))

	assert.Equal(t, "firefox (2 instances) focused *\nkitty (1 instance) minimized\n", buf.String())
}

func TestFormatInstance_Windowless(t *testing.T) {
	assert.Equal(t, "42 -", formatInstance(model.InstanceRef{PID: 42}, 0))
}

func TestPIDsFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewPIDsFormatter().Format(&buf, testPrograms()))
	assert.Equal(t, "101\n201\n", buf.String())
}

func TestFormatField(t *testing.T) {
	e := testPrograms()[0]

	tests := []struct {
		field    string
		expected string
	}{
		{"name", "firefox"},
		{"program", "firefox"},
		{"pid", "101"},
		{"count", "2"},
		{"title", "Mozilla Firefox"},
		{"state", "focused"},
		{"window", "0x1000001"},
		{"unknown", "firefox"}, // defaults to name
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatField(&e, tt.field))
		})
	}

	stopped := testPrograms()[2]
	assert.Equal(t, "", FormatField(&stopped, "pid"))
	assert.Equal(t, "", FormatField(&stopped, "window"))
}

func TestProgramState(t *testing.T) {
	tests := []struct {
		name     string
		entry    model.ProgramEntry
		expected string
	}{
		{"running", model.ProgramEntry{IsRunning: true, Instances: []model.InstanceRef{{PID: 1}}}, "running"},
		{"minimized", model.ProgramEntry{IsRunning: true, IsMinimized: true}, "minimized"},
		{"pinned", model.ProgramEntry{IsPinned: true}, "pinned"},
		{"unresolved", model.ProgramEntry{Unresolved: true, IsPinned: true}, "unresolved"},
		{"stopped", model.ProgramEntry{}, "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, programState(&tt.entry))
		})
	}
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()

	t.Run("dmenu", func(t *testing.T) {
		_, ok := NewFormatter(FormatDmenu, opts).(*DmenuFormatter)
		assert.True(t, ok)
	})

	t.Run("json", func(t *testing.T) {
		_, ok := NewFormatter(FormatJSON, opts).(*JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("yaml", func(t *testing.T) {
		_, ok := NewFormatter(FormatYAML, opts).(*YAMLFormatter)
		assert.True(t, ok)
	})

	t.Run("pids", func(t *testing.T) {
		_, ok := NewFormatter(FormatPIDs, opts).(*PIDsFormatter)
		assert.True(t, ok)
	})

	t.Run("default", func(t *testing.T) {
		_, ok := NewFormatter("unknown", opts).(*PlainFormatter)
		assert.True(t, ok) // defaults to plain
	})
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		maxLen   int
		expected string
	}{
		{"simple", "hello world", 0, "hello world"},
		{"with newlines", "hello\nworld", 0, "hello world"},
		{"tabs", "hello\tworld", 0, "hello world"},
		{"truncate", "hello world", 8, "hello..."},
		{"tiny limit", "hello", 2, "he"},
		{"multiple spaces", "hello   world ", 0, "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTitle(tt.title, tt.maxLen))
		})
	}
}

func TestBuildStatus(t *testing.T) {
	status, err := BuildStatus(testPrograms(), config.DefaultStatusTmpl, config.DefaultTooltipTmpl)
	require.NoError(t, err)

	assert.Equal(t, "2", status.Text)
	assert.Equal(t, "focused", status.Class)
	assert.Equal(t, "focused", status.Alt)
	assert.Equal(t, "firefox: 2\nkitty: 1", status.Tooltip)
	assert.Equal(t, 2, status.Percentage)
}

func TestBuildStatus_Empty(t *testing.T) {
	status, err := BuildStatus(testPrograms()[2:], config.DefaultStatusTmpl, config.DefaultTooltipTmpl)
	require.NoError(t, err)
	assert.Equal(t, WaybarStatus{Alt: "empty", Class: "empty"}, status)
}

func TestBuildStatus_Templates(t *testing.T) {
	entries := testPrograms()[1:]
	status, err := BuildStatus(entries, "{{.Instances}} in {{.Running}}", "{{.Pinned}} pinned")
	require.NoError(t, err)

	assert.Equal(t, "1 in 1", status.Text)
	assert.Equal(t, "running", status.Class)
	assert.Equal(t, "1 pinned", status.Tooltip)

	_, err = BuildStatus(entries, "{{.Nope", "")
	assert.Error(t, err)
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteStatus(&buf, WaybarStatus{Text: "3", Class: "running"}))
	assert.Equal(t, `{"text":"3","class":"running"}`+"\n", buf.String())
}
