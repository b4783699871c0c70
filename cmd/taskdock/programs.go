package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/taskdock/internal/adapter/output"
	"github.com/jmylchreest/taskdock/internal/core"
	"github.com/jmylchreest/taskdock/internal/model"
)

var programsOpts struct {
	// Filter options
	runningOnly bool
	pinnedOnly  bool
	match       string
	limit       int

	// Output options
	format   string
	field    string
	template string
}

var programsCmd = &cobra.Command{
	Use:     "programs [index|name|pid:N]",
	Aliases: []string{"ls"},
	Short:   "List running and pinned programs",
	Long: `List the taskbar's programs in various formats.

Pinned programs come first in pinned order, followed by running programs in
discovery order. Each program lists its instances: windows, or bare
processes for programs without windows.

With an argument, outputs that single program. The argument is a 1-based
index, a program name, or pid:<n>.

Examples:
  # List programs
  taskdock programs

  # Only programs with open windows, as JSON
  taskdock programs --running-only --format json

  # Pick a program with fuzzel and print its pids
  taskdock programs -f dmenu | fuzzel -d | cut -d' ' -f1 | xargs taskdock programs --field pid

  # Custom template
  taskdock programs --template '{{.Name}}: {{.Count}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrograms,
}

func init() {
	rootCmd.AddCommand(programsCmd)

	// Filter flags
	programsCmd.Flags().BoolVar(&programsOpts.runningOnly, "running-only", false,
		"Hide pinned programs that are not running")
	programsCmd.Flags().BoolVar(&programsOpts.pinnedOnly, "pinned-only", false,
		"Show only pinned programs")
	programsCmd.Flags().StringVarP(&programsOpts.match, "match", "m", "",
		"Fuzzy match against program names and window titles")
	programsCmd.Flags().IntVarP(&programsOpts.limit, "limit", "n", 0,
		"Maximum number of programs to show (0=unlimited)")

	// Output flags
	programsCmd.Flags().StringVarP(&programsOpts.format, "format", "f", "",
		"Output format ("+formatNames()+"; default from config)")
	programsCmd.Flags().StringVar(&programsOpts.field, "field", "",
		"Output a single field of one program (name, pid, count, title, state, window)")
	programsCmd.Flags().StringVar(&programsOpts.template, "template", "",
		"Custom Go template, or the name of a configured template")
}

func formatNames() string {
	names := make([]string, len(output.Formats))
	for i, f := range output.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func runPrograms(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	entries, err := fetchPrograms(ctx)
	if err != nil {
		return err
	}

	// If looking up a specific program
	if len(args) > 0 {
		return handleLookup(entries, args[0])
	}

	entries = core.Filter(entries, core.FilterOptions{
		RunningOnly: programsOpts.runningOnly || cfg.Programs.RunningOnly,
		PinnedOnly:  programsOpts.pinnedOnly,
		Match:       programsOpts.match,
		Limit:       firstNonZero(programsOpts.limit, cfg.Programs.Limit),
	})

	return outputPrograms(entries)
}

// handleLookup outputs a single program.
func handleLookup(entries []model.ProgramEntry, ref string) error {
	e := core.Lookup(entries, ref)
	if e == nil {
		return fmt.Errorf("program not found: %s", ref)
	}

	if programsOpts.field != "" {
		fmt.Println(output.FormatField(e, programsOpts.field))
		return nil
	}
	return outputPrograms([]model.ProgramEntry{*e})
}

// outputPrograms writes entries in the selected format.
func outputPrograms(entries []model.ProgramEntry) error {
	format := output.FormatType(programsOpts.format)
	if format == "" {
		format = output.FormatType(cfg.Programs.Format)
	}
	if !slices.Contains(output.Formats, format) {
		return fmt.Errorf("unknown format %q (want one of %s)", format, formatNames())
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = resolveTemplate(format)

	return output.NewFormatter(format, opts).Format(os.Stdout, entries)
}

// resolveTemplate picks the --template value, a named template from the
// config, or the configured default for the format.
func resolveTemplate(format output.FormatType) string {
	if t := programsOpts.template; t != "" {
		if named := cfg.GetTemplate(t); named != "" {
			return named
		}
		return t
	}
	return cfg.GetTemplate(string(format))
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
