package registry

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/jmylchreest/taskdock/internal/model"
)

// ICCCM WM_CHANGE_STATE value requesting iconification.
const iconicState = 3

// X11Options configures an X11Windows registry.
type X11Options struct {
	Display string        // X display, empty uses $DISPLAY
	MaxAge  time.Duration // how long a client list snapshot is reused
	Logger  *slog.Logger
}

// X11Windows is a WindowRegistry backed by an EWMH-compliant X11 window
// manager.
type X11Windows struct {
	conn   *xgb.Conn
	root   xproto.Window
	maxAge time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	atoms   map[string]xproto.Atom
	snap    []model.WindowRecord
	snapAt  time.Time
	clients map[xproto.Window]bool
}

// x11Handle is attached while its window is listed in _NET_CLIENT_LIST.
type x11Handle struct {
	reg *X11Windows
	win xproto.Window
}

func (h x11Handle) Attached() bool {
	return h.reg.isClient(h.win)
}

func (h x11Handle) String() string {
	return formatWindowID(h.win)
}

// NewX11Windows connects to the X server.
func NewX11Windows(opts X11Options) (*X11Windows, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 100 * time.Millisecond
	}

	var (
		conn *xgb.Conn
		err  error
	)
	if opts.Display != "" {
		conn, err = xgb.NewConnDisplay(opts.Display)
	} else {
		conn, err = xgb.NewConn()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	return &X11Windows{
		conn:    conn,
		root:    setup.DefaultScreen(conn).Root,
		maxAge:  opts.MaxAge,
		logger:  opts.Logger,
		atoms:   make(map[string]xproto.Atom),
		clients: make(map[xproto.Window]bool),
	}, nil
}

// Close closes the X connection.
func (x *X11Windows) Close() error {
	x.conn.Close()
	return nil
}

// WindowsByPID implements WindowRegistry.
func (x *X11Windows) WindowsByPID(_ context.Context, pid int) ([]model.WindowRecord, error) {
	snap, err := x.snapshot()
	if err != nil {
		return nil, err
	}
	var out []model.WindowRecord
	for _, w := range snap {
		if w.PID == pid {
			out = append(out, w)
		}
	}
	return out, nil
}

// WindowInfo implements WindowRegistry.
func (x *X11Windows) WindowInfo(_ context.Context, windowID string) (*model.WindowRecord, error) {
	snap, err := x.snapshot()
	if err != nil {
		return nil, err
	}
	for _, w := range snap {
		if w.WindowID == windowID {
			rec := w
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("window %s: %w", windowID, ErrNotFound)
}

// Focus implements WindowRegistry via _NET_ACTIVE_WINDOW.
func (x *X11Windows) Focus(_ context.Context, windowID string) error {
	return x.clientMessage("focus", windowID, "_NET_ACTIVE_WINDOW", 2, xproto.TimeCurrentTime, 0)
}

// Minimize implements WindowRegistry via WM_CHANGE_STATE.
func (x *X11Windows) Minimize(_ context.Context, windowID string) error {
	return x.clientMessage("minimize", windowID, "WM_CHANGE_STATE", iconicState)
}

// Restore implements WindowRegistry. Activating an iconic window maps it.
func (x *X11Windows) Restore(_ context.Context, windowID string) error {
	return x.clientMessage("restore", windowID, "_NET_ACTIVE_WINDOW", 2, xproto.TimeCurrentTime, 0)
}

// CloseWindow implements WindowRegistry. A forced close disconnects the
// owning client instead of asking the window manager politely.
func (x *X11Windows) CloseWindow(_ context.Context, windowID string, force bool) error {
	if !force {
		return x.clientMessage("close", windowID, "_NET_CLOSE_WINDOW", xproto.TimeCurrentTime, 2)
	}
	win, err := parseWindowID(windowID)
	if err != nil {
		return &DelegateError{Op: "kill", Target: windowID, Cause: err}
	}
	if err := xproto.KillClientChecked(x.conn, uint32(win)).Check(); err != nil {
		return &DelegateError{Op: "kill", Target: windowID, Cause: err}
	}
	x.invalidate()
	return nil
}

// clientMessage sends an EWMH client message about windowID to the root.
func (x *X11Windows) clientMessage(op, windowID, atomName string, data ...uint32) error {
	win, err := parseWindowID(windowID)
	if err != nil {
		return &DelegateError{Op: op, Target: windowID, Cause: err}
	}
	if !x.isClient(win) {
		return &DelegateError{Op: op, Target: windowID, Cause: ErrNotFound}
	}
	atom, err := x.atom(atomName)
	if err != nil {
		return &DelegateError{Op: op, Target: windowID, Cause: err}
	}

	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}
	mask := uint32(xproto.EventMaskSubstructureNotify | xproto.EventMaskSubstructureRedirect)
	if err := xproto.SendEventChecked(x.conn, false, x.root, mask, string(ev.Bytes())).Check(); err != nil {
		return &DelegateError{Op: op, Target: windowID, Cause: err}
	}

	x.invalidate()
	x.logger.Debug("sent client message", "op", op, "window", windowID)
	return nil
}

// snapshot returns the client list, re-reading it once it is older than
// maxAge.
func (x *X11Windows) snapshot() ([]model.WindowRecord, error) {
	x.mu.Lock()
	if x.snap != nil && time.Since(x.snapAt) < x.maxAge {
		snap := x.snap
		x.mu.Unlock()
		return snap, nil
	}
	x.mu.Unlock()

	clients, err := x.windowList("_NET_CLIENT_LIST", x.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read client list: %w", err)
	}
	active := x.activeWindow()

	records := make([]model.WindowRecord, 0, len(clients))
	set := make(map[xproto.Window]bool, len(clients))
	for _, win := range clients {
		set[win] = true
		rec, err := x.record(win, active)
		if err != nil {
			x.logger.Debug("skipping window", "window", formatWindowID(win), "error", err)
			continue
		}
		records = append(records, rec)
	}

	x.mu.Lock()
	x.snap = records
	x.snapAt = time.Now()
	x.clients = set
	x.mu.Unlock()

	return records, nil
}

func (x *X11Windows) invalidate() {
	x.mu.Lock()
	x.snap = nil
	x.mu.Unlock()
}

func (x *X11Windows) isClient(win xproto.Window) bool {
	if _, err := x.snapshot(); err != nil {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.clients[win]
}

func (x *X11Windows) record(win, active xproto.Window) (model.WindowRecord, error) {
	pids, err := x.cardinals("_NET_WM_PID", win)
	if err != nil {
		return model.WindowRecord{}, err
	}
	if len(pids) == 0 {
		return model.WindowRecord{}, fmt.Errorf("no _NET_WM_PID")
	}

	transient, _ := x.windowList("WM_TRANSIENT_FOR", win)
	states, _ := x.atomList("_NET_WM_STATE", win)
	hidden, _ := x.atom("_NET_WM_STATE_HIDDEN")

	return model.WindowRecord{
		WindowID:     formatWindowID(win),
		PID:          int(pids[0]),
		Title:        x.title(win),
		IsMainWindow: len(transient) == 0,
		IsMinimized:  hidden != 0 && slices.Contains(states, hidden),
		IsFocused:    win == active,
		Handle:       x11Handle{reg: x, win: win},
	}, nil
}

func (x *X11Windows) activeWindow() xproto.Window {
	wins, err := x.windowList("_NET_ACTIVE_WINDOW", x.root)
	if err != nil || len(wins) == 0 {
		return 0
	}
	return wins[0]
}

// title prefers the UTF-8 _NET_WM_NAME and falls back to WM_NAME.
func (x *X11Windows) title(win xproto.Window) string {
	if raw, err := x.property("_NET_WM_NAME", win); err == nil && len(raw) > 0 {
		return string(raw)
	}
	reply, err := xproto.GetProperty(x.conn, false, win, xproto.AtomWmName,
		xproto.GetPropertyTypeAny, 0, 1024).Reply()
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(reply.Value), "\x00")
}

func (x *X11Windows) property(name string, win xproto.Window) ([]byte, error) {
	atom, err := x.atom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(x.conn, false, win, atom,
		xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (x *X11Windows) cardinals(name string, win xproto.Window) ([]uint32, error) {
	raw, err := x.property(name, win)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(raw[i:i+4]))
	}
	return out, nil
}

func (x *X11Windows) windowList(name string, win xproto.Window) ([]xproto.Window, error) {
	vals, err := x.cardinals(name, win)
	if err != nil {
		return nil, err
	}
	out := make([]xproto.Window, len(vals))
	for i, v := range vals {
		out[i] = xproto.Window(v)
	}
	return out, nil
}

func (x *X11Windows) atomList(name string, win xproto.Window) ([]xproto.Atom, error) {
	vals, err := x.cardinals(name, win)
	if err != nil {
		return nil, err
	}
	out := make([]xproto.Atom, len(vals))
	for i, v := range vals {
		out[i] = xproto.Atom(v)
	}
	return out, nil
}

// atom interns name once and caches it for the life of the connection.
func (x *X11Windows) atom(name string) (xproto.Atom, error) {
	x.mu.Lock()
	if a, ok := x.atoms[name]; ok {
		x.mu.Unlock()
		return a, nil
	}
	x.mu.Unlock()

	reply, err := xproto.InternAtom(x.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}

	x.mu.Lock()
	x.atoms[name] = reply.Atom
	x.mu.Unlock()
	return reply.Atom, nil
}

func formatWindowID(win xproto.Window) string {
	return fmt.Sprintf("0x%08x", uint32(win))
}

func parseWindowID(id string) (xproto.Window, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(id, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q: %w", id, err)
	}
	return xproto.Window(v), nil
}
