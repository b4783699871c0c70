// Package tui provides the BubbleTea-based terminal user interface.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/core"
	"github.com/jmylchreest/taskdock/internal/dbus"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// callTimeout bounds every request to taskdockd.
const callTimeout = 3 * time.Second

// wheelDelta is the deltaY sent per mouse wheel notch.
const wheelDelta = 60

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeSearch
	ModeHelp
	ModeSwitcher
)

// Backend is the taskdockd connection the TUI drives. *dbus.Client
// implements it.
type Backend interface {
	Programs(ctx context.Context) ([]model.ProgramEntry, error)
	SelectorActivate(ctx context.Context, pid int, windowID string) error
	SelectorClose(ctx context.Context, pid int, windowID string) error
	SwitcherEnter(ctx context.Context) (bool, error)
	SwitcherKey(ctx context.Context, key string) error
	SwitcherWheel(ctx context.Context, deltaY float64) error
	SwitcherPress(ctx context.Context) error
	SwitcherState(ctx context.Context) (switcher.Snapshot, error)
}

var _ Backend = (*dbus.Client)(nil)

// Model is the main TUI model.
type Model struct {
	// Configuration
	cfg     *config.Config
	backend Backend

	// Current mode
	mode Mode

	// Components
	list        list.Model
	viewport    viewport.Model
	searchInput textinput.Model
	help        help.Model

	// State
	programs    []model.ProgramEntry
	selected    *model.ProgramEntry
	instance    int
	searchQuery string
	showStopped bool
	sw          switcher.Snapshot
	updated     time.Time
	now         func() time.Time
	width       int
	height      int
	ready       bool

	// Key bindings
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool

	// Signal subscription; nil falls back to polling
	events <-chan dbus.Event
}

// programItem wraps a program entry for the list component.
type programItem struct {
	entry      model.ProgramEntry
	showTitles bool
}

func (i programItem) Title() string {
	title := i.entry.Name
	if i.entry.IsPinned {
		title += " *"
	}
	return title
}

func (i programItem) Description() string {
	e := i.entry
	switch {
	case !e.IsRunning && e.Unresolved:
		return "unresolved"
	case !e.IsRunning:
		return "not running"
	}
	desc := humanize.Comma(int64(len(e.Instances))) + " " + pluralize(len(e.Instances), "instance")
	if e.IsMinimized {
		desc += ", minimized"
	}
	if t := e.FocusedTitle(); t != "" && i.showTitles {
		desc += " - " + t
	}
	return desc
}

func (i programItem) FilterValue() string {
	return i.entry.Name
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// programDelegate renders running programs normally and stopped pinned
// programs dimmed.
type programDelegate struct {
	list.DefaultDelegate
}

func newProgramDelegate() programDelegate {
	return programDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a list item. All items use the same layout to avoid
// visual glitches.
func (d programDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	pi, ok := item.(programItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	isSelected := index == m.Index()
	stopped := !pi.entry.IsRunning

	itemWidth := m.Width() - d.DefaultDelegate.Styles.NormalTitle.GetHorizontalPadding()

	var titleStyle, descStyle lipgloss.Style
	if isSelected {
		titleStyle = d.DefaultDelegate.Styles.SelectedTitle
		descStyle = d.DefaultDelegate.Styles.SelectedDesc
	} else {
		titleStyle = d.DefaultDelegate.Styles.NormalTitle
		descStyle = d.DefaultDelegate.Styles.NormalDesc
	}
	if stopped {
		titleStyle = titleStyle.Foreground(lipgloss.Color("8"))
		descStyle = descStyle.Foreground(lipgloss.Color("8"))
	}

	title := pi.Title()
	if itemWidth > 0 && len(title) > itemWidth {
		title = title[:itemWidth-1] + "…"
	}
	desc := pi.Description()
	if itemWidth > 0 && len(desc) > itemWidth {
		desc = desc[:itemWidth-1] + "…"
	}

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// New creates a new TUI model. events may be nil, in which case the
// program list is polled at the configured refresh interval.
func New(cfg *config.Config, backend Backend, events <-chan dbus.Event) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	l := list.New(nil, newProgramDelegate(), 0, 0)
	l.Title = "Programs"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search..."
	searchInput.CharLimit = 100

	return Model{
		cfg:         cfg,
		backend:     backend,
		mode:        ModeList,
		list:        l,
		searchInput: searchInput,
		help:        help.New(),
		keys:        DefaultKeyMap(),
		showStopped: !cfg.Programs.RunningOnly,
		sw:          switcher.Snapshot{State: switcher.Inactive.String()},
		now:         time.Now,
		events:      events,
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadPrograms, m.fetchSwitcher}
	if m.events != nil {
		cmds = append(cmds, m.waitForEvent)
	} else {
		cmds = append(cmds, m.schedulePoll())
	}
	return tea.Batch(cmds...)
}

type programsMsg struct {
	entries []model.ProgramEntry
	err     error
}

type eventMsg struct {
	event dbus.Event
}

type eventsClosedMsg struct{}

type pollMsg struct{}

type switcherStateMsg struct {
	snap switcher.Snapshot
	err  error
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

// loadPrograms fetches the program list from taskdockd.
func (m Model) loadPrograms() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	entries, err := m.backend.Programs(ctx)
	return programsMsg{entries: entries, err: err}
}

// waitForEvent waits for the next taskdockd signal.
func (m Model) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return eventsClosedMsg{}
	}
	return eventMsg{event: ev}
}

func (m Model) schedulePoll() tea.Cmd {
	interval := m.cfg.TUI.Refresh.Duration()
	if interval <= 0 {
		interval = config.DefaultTUIRefresh.Duration()
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

// call runs fn against the backend and reports its outcome as a status.
func (m Model) call(done string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return statusMsg{text: err.Error(), isErr: true}
		}
		if done == "" {
			return nil
		}
		return statusMsg{text: done}
	}
}

// fetchSwitcher reads the switcher session state.
func (m Model) fetchSwitcher() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	snap, err := m.backend.SwitcherState(ctx)
	return switcherStateMsg{snap: snap, err: err}
}

// switcherCall runs a switcher request and then re-reads the session.
func (m Model) switcherCall(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return switcherStateMsg{snap: m.sw, err: err}
		}
		snap, err := m.backend.SwitcherState(ctx)
		return switcherStateMsg{snap: snap, err: err}
	}
}

// enterSwitcher starts a session and returns its state.
func (m Model) enterSwitcher() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	entered, err := m.backend.SwitcherEnter(ctx)
	if err != nil {
		return statusMsg{text: "Switcher unavailable: " + err.Error(), isErr: true}
	}
	if !entered {
		return statusMsg{text: "No windows to switch to"}
	}
	snap, err := m.backend.SwitcherState(ctx)
	return switcherStateMsg{snap: snap, err: err}
}

func showStatus(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.list.SetSize(msg.Width, msg.Height-2)
		m.viewport = viewport.New(msg.Width, msg.Height-4)
		m.viewport.YPosition = 2
		m.refreshDetail()
		return m, nil

	case programsMsg:
		if msg.err != nil {
			return m, showStatus("Failed to load programs: "+msg.err.Error(), true)
		}
		m.setPrograms(msg.entries)
		return m, nil

	case eventMsg:
		m.applyEvent(msg.event)
		return m, m.waitForEvent

	case eventsClosedMsg:
		m.events = nil
		return m, tea.Batch(showStatus("Lost connection to taskdockd signals, polling", true), m.schedulePoll())

	case pollMsg:
		return m, tea.Batch(m.loadPrograms, m.schedulePoll())

	case switcherStateMsg:
		if msg.err != nil {
			m.mode = ModeList
			return m, showStatus("Switcher: "+msg.err.Error(), true)
		}
		m.applySwitcher(msg.snap)
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	// Update child components
	switch m.mode {
	case ModeList:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	case ModeDetail:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	case ModeSearch:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// setPrograms replaces the program list, keeping the selection by name.
func (m *Model) setPrograms(entries []model.ProgramEntry) {
	m.programs = entries
	m.updated = m.now()
	m.list.SetItems(m.buildListItems())

	if m.selected == nil {
		return
	}
	for _, e := range entries {
		if e.Name == m.selected.Name {
			m.selected = &e
			m.instance = min(m.instance, max(len(e.Instances)-1, 0))
			m.refreshDetail()
			return
		}
	}
	m.selected = nil
	if m.mode == ModeDetail {
		m.mode = ModeList
	}
}

// applyEvent folds a taskdockd signal into the model.
func (m *Model) applyEvent(ev dbus.Event) {
	switch ev.Name {
	case dbus.SignalProgramsChanged:
		m.setPrograms(ev.Programs)
	case dbus.SignalSwitcherOpened:
		m.applySwitcher(ev.Switcher.Snapshot())
	case dbus.SignalSwitcherSelection:
		if m.sw.State == switcher.Active.String() {
			m.sw.Selected = ev.Index
		}
	case dbus.SignalSwitcherUpdated:
		if m.sw.State == switcher.Active.String() {
			m.sw.Items = ev.Items
			m.sw.Selected = ev.Index
		}
	case dbus.SignalSwitcherClosed:
		m.applySwitcher(switcher.Snapshot{State: switcher.Inactive.String()})
	}
}

// applySwitcher shows or leaves the switcher view to match the session.
func (m *Model) applySwitcher(snap switcher.Snapshot) {
	m.sw = snap
	if snap.State == switcher.Active.String() {
		m.mode = ModeSwitcher
		return
	}
	if m.mode == ModeSwitcher {
		m.mode = ModeList
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The switcher owns the keyboard while a session is open.
	if m.mode == ModeSwitcher {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		keyName := switcherKeyName(msg)
		return m, m.switcherCall(func(ctx context.Context) error {
			return m.backend.SwitcherKey(ctx, keyName)
		})
	}

	// Global keys
	switch {
	case key.Matches(msg, m.keys.Quit) && m.mode != ModeSearch:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help) && m.mode != ModeSearch:
		if m.mode == ModeHelp {
			m.mode = ModeList
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	// Mode-specific keys
	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}

	return m, nil
}

// handleMouse forwards wheel and clicks to an open switcher.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeSwitcher {
		var cmd tea.Cmd
		if m.mode == ModeList {
			m.list, cmd = m.list.Update(msg)
		}
		return m, cmd
	}

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		return m, m.switcherCall(func(ctx context.Context) error {
			return m.backend.SwitcherWheel(ctx, -wheelDelta)
		})
	case msg.Button == tea.MouseButtonWheelDown:
		return m, m.switcherCall(func(ctx context.Context) error {
			return m.backend.SwitcherWheel(ctx, wheelDelta)
		})
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		return m, m.switcherCall(m.backend.SwitcherPress)
	}
	return m, nil
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		m.openDetail()
		return m, nil

	case key.Matches(msg, m.keys.Activate):
		if item, ok := m.list.SelectedItem().(programItem); ok {
			return m, m.activate(item.entry, 0)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleStopped):
		m.showStopped = !m.showStopped
		m.list.SetItems(m.buildListItems())
		if m.showStopped {
			return m, showStatus("Showing pinned programs", false)
		}
		return m, showStatus("Hiding programs that are not running", false)

	case key.Matches(msg, m.keys.Search):
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		m.mode = ModeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadPrograms

	case key.Matches(msg, m.keys.Switcher):
		return m, m.enterSwitcher
	}

	// Pass to list
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleDetailKey handles keys in the instance view.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.selected = nil
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.instance > 0 {
			m.instance--
			m.refreshDetail()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected != nil && m.instance < len(m.selected.Instances)-1 {
			m.instance++
			m.refreshDetail()
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter), key.Matches(msg, m.keys.Activate):
		if m.selected != nil {
			return m, m.activate(*m.selected, m.instance)
		}
		return m, nil

	case key.Matches(msg, m.keys.Close):
		if m.selected != nil && m.instance < len(m.selected.Instances) {
			inst := m.selected.Instances[m.instance]
			return m, m.call("Closed "+m.selected.Name, func(ctx context.Context) error {
				return m.backend.SelectorClose(ctx, inst.PID, inst.WindowID)
			})
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if m.selected != nil && m.instance < len(m.selected.Instances) {
			inst := m.selected.Instances[m.instance]
			text := inst.WindowID
			if text == "" {
				text = fmt.Sprintf("%d", inst.PID)
			}
			if err := copyText(text); err != nil {
				return m, showStatus("Copy failed: "+err.Error(), true)
			}
			return m, showStatus("Copied "+text, false)
		}
		return m, nil
	}

	// Pass to viewport
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeList
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		return m, nil

	case tea.KeyEnter:
		m.searchInput.Blur()
		m.openDetail()
		if m.mode != ModeDetail {
			m.mode = ModeList
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Live filtering
	m.searchQuery = m.searchInput.Value()
	m.list.SetItems(m.buildListItems())

	return m, cmd
}

func (m *Model) openDetail() {
	item, ok := m.list.SelectedItem().(programItem)
	if !ok {
		return
	}
	e := item.entry
	m.selected = &e
	m.instance = 0
	m.mode = ModeDetail
	m.refreshDetail()
	m.viewport.GotoTop()
}

func (m *Model) refreshDetail() {
	if m.selected != nil {
		m.viewport.SetContent(m.renderDetail(*m.selected))
	}
}

// activate focuses instance i of e through the selector.
func (m Model) activate(e model.ProgramEntry, i int) tea.Cmd {
	if i >= len(e.Instances) {
		return showStatus(e.Name+" is not running", false)
	}
	inst := e.Instances[i]
	if !inst.HasWindow() {
		return showStatus(e.Name+" has no window", false)
	}
	return m.call("", func(ctx context.Context) error {
		return m.backend.SelectorActivate(ctx, inst.PID, inst.WindowID)
	})
}

// filteredPrograms applies the stopped-program toggle and the search query.
func (m Model) filteredPrograms() []model.ProgramEntry {
	return core.Filter(m.programs, core.FilterOptions{
		RunningOnly: !m.showStopped,
		Match:       m.searchQuery,
	})
}

// buildListItems creates list items from the current programs.
func (m Model) buildListItems() []list.Item {
	entries := m.filteredPrograms()
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = programItem{entry: e, showTitles: m.cfg.TUI.ShowTitles}
	}
	return items
}

// renderDetail renders the instance view for a program.
func (m Model) renderDetail(e model.ProgramEntry) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))
	cursorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(e.Name) + "\n\n")

	state := "not running"
	if e.IsRunning {
		state = "running"
		if e.IsMinimized {
			state = "minimized"
		}
	}
	sb.WriteString(labelStyle.Render("State: ") + state + "\n")
	if e.IsPinned {
		sb.WriteString(labelStyle.Render("Pinned: ") + "yes\n")
	}
	if e.RepresentativePID != 0 {
		sb.WriteString(labelStyle.Render("PID: ") + fmt.Sprintf("%d", e.RepresentativePID) + "\n")
	}

	if len(e.Instances) == 0 {
		return sb.String()
	}

	sb.WriteString("\n" + labelStyle.Render("Instances:") + "\n")
	for i, inst := range e.Instances {
		cursor := "  "
		if i == m.instance {
			cursor = cursorStyle.Render("> ")
		}
		title := inst.Title
		if !inst.HasWindow() {
			title = "(no window)"
		}
		var flags []string
		if inst.IsFocused {
			flags = append(flags, "focused")
		}
		if inst.IsMinimized {
			flags = append(flags, "minimized")
		}
		line := fmt.Sprintf("%s%-7d %s", cursor, inst.PID, title)
		if len(flags) > 0 {
			line += " " + labelStyle.Render("["+strings.Join(flags, ", ")+"]")
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeDetail:
		return m.viewDetail()
	case ModeSearch:
		return m.viewSearch()
	case ModeHelp:
		return m.viewHelp()
	case ModeSwitcher:
		return m.viewSwitcher()
	default:
		return ""
	}
}

func (m Model) viewList() string {
	var s string
	s += m.list.View()

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else {
		s += "\n" + m.buildKeybindBar(m.width, "list")
	}

	return s
}

func (m Model) viewDetail() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	header := headerStyle.Render("Program Instances")
	if !m.updated.IsZero() {
		header += lipgloss.NewStyle().Foreground(lipgloss.Color("8")).
			Render("updated " + humanize.RelTime(m.updated, m.now(), "ago", "from now"))
	}

	footer := m.buildKeybindBar(m.width, "detail")
	if m.statusMsg != "" {
		footer = m.statusMsg
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m Model) viewSearch() string {
	countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))

	searchBar := "Search: " + m.searchInput.View() + " " +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(countStr)

	return searchBar + "\n" + m.list.View() + "\n" + m.buildKeybindBar(m.width, "search")
}

func (m Model) viewSwitcher() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)
	selectedStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12"))
	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Task Switcher") + "\n\n")
	for i, it := range m.sw.Items {
		line := fmt.Sprintf("%-16s %s", it.ProgramName, it.Title)
		if it.IsMinimized {
			line += dimStyle.Render(" (minimized)")
		}
		if i == m.sw.Selected {
			sb.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			sb.WriteString("  " + line + "\n")
		}
	}
	sb.WriteString("\n" + m.buildKeybindBar(m.width, "switcher"))
	return sb.String()
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"

	s += sectionStyle.Render("Navigation") + "\n"
	s += keyStyle.Render("  j/k, ↑/↓") + "     Move up/down\n"
	s += keyStyle.Render("  g/G") + "          Go to top/bottom\n"
	s += keyStyle.Render("  pgup/pgdn") + "    Page up/down\n"
	s += "\n"

	s += sectionStyle.Render("Programs") + "\n"
	s += keyStyle.Render("  enter") + "        View instances\n"
	s += keyStyle.Render("  f") + "            Focus the selected instance\n"
	s += keyStyle.Render("  x") + "            Close the selected instance\n"
	s += keyStyle.Render("  y") + "            Copy the instance's window id\n"
	s += keyStyle.Render("  p") + "            Toggle pinned programs that are not running\n"
	s += keyStyle.Render("  /") + "            Search\n"
	s += keyStyle.Render("  r") + "            Refresh\n"
	s += "\n"

	s += sectionStyle.Render("Task switcher") + "\n"
	s += keyStyle.Render("  tab") + "          Open, then next window\n"
	s += keyStyle.Render("  shift+tab") + "    Previous window\n"
	s += keyStyle.Render("  enter") + "        Focus selection\n"
	s += keyStyle.Render("  ctrl+w") + "       Close selection\n"
	s += keyStyle.Render("  wheel/click") + "  Step / focus selection\n"
	s += keyStyle.Render("  esc") + "          Leave the switcher\n"
	s += "\n"

	s += sectionStyle.Render("General") + "\n"
	s += keyStyle.Render("  ?") + "            Toggle this help\n"
	s += keyStyle.Render("  esc") + "          Back / Cancel\n"
	s += keyStyle.Render("  q") + "            Quit\n"

	s += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(
		"Press ? or esc to return")

	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// mode determines which keybinds are shown: "list", "detail", "search",
// "switcher"
func (m Model) buildKeybindBar(width int, mode string) string {
	if !m.cfg.TUI.ShowHelp {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind

	switch mode {
	case "list":
		binds = []keybind{
			{"q", "quit", 1},
			{"enter", "instances", 2},
			{"tab", "switcher", 3},
			{"?", "help", 4},
			{"/", "search", 5},
			{"f", "focus", 6},
			{"p", "pinned", 7},
			{"r", "refresh", 8},
		}
	case "detail":
		binds = []keybind{
			{"q", "quit", 1},
			{"esc", "back", 2},
			{"enter", "focus", 3},
			{"x", "close", 4},
			{"y", "copy", 5},
			{"j/k", "move", 6},
		}
	case "search":
		binds = []keybind{
			{"enter", "view", 1},
			{"esc", "close", 2},
			{"↑/↓", "navigate", 3},
		}
	case "switcher":
		binds = []keybind{
			{"tab", "next", 1},
			{"enter", "focus", 2},
			{"esc", "exit", 3},
			{"shift+tab", "prev", 4},
			{"ctrl+w", "close", 5},
		}
	}

	const separator = "  "
	result := ""
	plainLen := 0
	for _, b := range binds {
		plainItem := b.key + " " + b.desc
		testLen := plainLen + len(plainItem)
		if result != "" {
			testLen += len(separator)
		}
		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plainLen = testLen
	}

	return style.Render(result)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config  *config.Config
	Backend Backend
	Events  <-chan dbus.Event // nil = poll
}

// Run starts the TUI with the given options.
func Run(opts RunOptions) error {
	m := New(opts.Config, opts.Backend, opts.Events)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
