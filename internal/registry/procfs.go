package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"

	"github.com/jmylchreest/taskdock/internal/model"
)

// ProcFSOptions configures a ProcFS registry.
type ProcFSOptions struct {
	Root       string   // procfs mount point, default /proc
	Shells     []string // interactive shell names, reported as CLITerminal
	Background []string // helper program names, reported as Background
	Protected  int      // pid that must never be killed
	UID        int      // only list processes owned by this uid; -1 lists all
	CacheSize  int      // number of cached per-process name lookups
	Logger     *slog.Logger
}

// ProcFS is a ProcessRegistry backed by the Linux /proc filesystem.
type ProcFS struct {
	opts   ProcFSOptions
	cache  *lru.Cache[string, procName]
	logger *slog.Logger
}

type procName struct {
	program string
	cmdline string
}

// procStat holds the fields of /proc/<pid>/stat that the registry uses.
const kthreaddPID = 2

type procStat struct {
	pid       int
	comm      string
	state     byte
	ppid      int
	tty       int
	startTime uint64
}

// NewProcFS creates a procfs-backed process registry.
func NewProcFS(opts ProcFSOptions) (*ProcFS, error) {
	if opts.Root == "" {
		opts.Root = "/proc"
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 512
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cache, err := lru.New[string, procName](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create process cache: %w", err)
	}

	return &ProcFS{
		opts:   opts,
		cache:  cache,
		logger: opts.Logger,
	}, nil
}

// All implements ProcessRegistry. Kernel threads and processes owned by
// other users are skipped.
func (p *ProcFS) All(ctx context.Context) ([]model.ProcessRecord, error) {
	entries, err := os.ReadDir(p.opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.opts.Root, err)
	}

	var records []model.ProcessRecord
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || !entry.IsDir() {
			continue
		}
		if !p.ownedByUser(pid) {
			continue
		}

		rec, err := p.read(pid)
		if err != nil {
			// Processes exit while we scan; that is expected.
			if !errors.Is(err, ErrNotFound) {
				p.logger.Debug("skipping process", "pid", pid, "error", err)
			}
			continue
		}
		if rec == nil {
			continue
		}
		records = append(records, *rec)
	}

	return records, nil
}

// ByPID implements ProcessRegistry.
func (p *ProcFS) ByPID(_ context.Context, pid int) (*model.ProcessRecord, error) {
	rec, err := p.read(pid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	return rec, nil
}

// Kill implements ProcessRegistry by sending SIGTERM.
func (p *ProcFS) Kill(_ context.Context, pid int) error {
	target := fmt.Sprintf("pid %d", pid)
	if pid <= 0 {
		return &DelegateError{Op: "kill", Target: target, Cause: ErrNotFound}
	}
	if pid == p.opts.Protected {
		return &DelegateError{Op: "kill", Target: target, Cause: ErrProtected}
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			err = ErrNotFound
		}
		return &DelegateError{Op: "kill", Target: target, Cause: err}
	}

	p.logger.Debug("sent SIGTERM", "pid", pid)
	return nil
}

// ProtectedPID implements ProcessRegistry.
func (p *ProcFS) ProtectedPID() int {
	return p.opts.Protected
}

// read builds a record for pid. It returns nil, nil for kernel threads.
func (p *ProcFS) read(pid int) (*model.ProcessRecord, error) {
	dir := filepath.Join(p.opts.Root, strconv.Itoa(pid))

	raw, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
		}
		return nil, err
	}
	st, err := parseStat(raw)
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, err)
	}

	name, err := p.name(dir, st)
	if err != nil {
		return nil, err
	}
	if name.program == "" {
		return nil, nil
	}

	rec := &model.ProcessRecord{
		PID:         pid,
		ProgramName: name.program,
		Status:      model.StatusRunning,
		Metadata: map[string]string{
			"ppid":    strconv.Itoa(st.ppid),
			"comm":    st.comm,
			"cmdline": name.cmdline,
		},
	}
	if st.state == 'Z' || st.state == 'X' || st.state == 'x' {
		rec.Status = model.StatusExited
	}

	rec.Background = slices.Contains(p.opts.Background, name.program)
	if st.tty != 0 {
		if slices.Contains(p.opts.Shells, name.program) {
			rec.CLITerminal = true
		} else {
			rec.CLILaunchedFromTerminal = true
		}
	}

	return rec, nil
}

// name resolves the program name, cached per pid and start time so that
// recycled pids never reuse a stale name.
func (p *ProcFS) name(dir string, st procStat) (procName, error) {
	key := fmt.Sprintf("%d:%d", st.pid, st.startTime)
	if cached, ok := p.cache.Get(key); ok {
		return cached, nil
	}

	raw, err := os.ReadFile(filepath.Join(dir, "cmdline"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return procName{}, fmt.Errorf("pid %d: %w", st.pid, ErrNotFound)
		}
		return procName{}, err
	}

	var name procName
	args := bytes.Split(bytes.TrimRight(raw, "\x00"), []byte{0})
	if len(args) > 0 && len(args[0]) > 0 {
		name.program = filepath.Base(string(args[0]))
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = string(a)
		}
		name.cmdline = strings.Join(parts, " ")
	}
	// Zombies lose their cmdline but keep comm. Kernel threads stay nameless.
	if name.program == "" && !isKernelThread(st) {
		name.program = st.comm
	}

	p.cache.Add(key, name)
	return name, nil
}

// isKernelThread reports whether st is kthreadd or one of its children.
func isKernelThread(st procStat) bool {
	return st.pid == kthreaddPID || st.ppid == kthreaddPID
}

func (p *ProcFS) ownedByUser(pid int) bool {
	if p.opts.UID < 0 {
		return true
	}
	var st unix.Stat_t
	if err := unix.Stat(filepath.Join(p.opts.Root, strconv.Itoa(pid)), &st); err != nil {
		return false
	}
	return int(st.Uid) == p.opts.UID
}

// parseStat parses the contents of /proc/<pid>/stat. The comm field may
// contain spaces and parentheses, so it is delimited by the last ')'.
func parseStat(raw []byte) (procStat, error) {
	s := string(raw)
	open := strings.IndexByte(s, '(')
	closing := strings.LastIndexByte(s, ')')
	if open < 0 || closing < open {
		return procStat{}, fmt.Errorf("malformed stat: %q", s)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(s[:open]))
	if err != nil {
		return procStat{}, fmt.Errorf("malformed stat pid: %w", err)
	}

	fields := strings.Fields(s[closing+1:])
	// state ppid pgrp session tty_nr ... starttime is the 20th field here.
	if len(fields) < 20 {
		return procStat{}, fmt.Errorf("malformed stat: %d fields", len(fields))
	}

	st := procStat{
		pid:   pid,
		comm:  s[open+1 : closing],
		state: fields[0][0],
	}
	if st.ppid, err = strconv.Atoi(fields[1]); err != nil {
		return procStat{}, fmt.Errorf("malformed stat ppid: %w", err)
	}
	if st.tty, err = strconv.Atoi(fields[4]); err != nil {
		return procStat{}, fmt.Errorf("malformed stat tty: %w", err)
	}
	if st.startTime, err = strconv.ParseUint(fields[19], 10, 64); err != nil {
		return procStat{}, fmt.Errorf("malformed stat starttime: %w", err)
	}

	return st, nil
}
