package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/model"
	"github.com/jmylchreest/taskdock/internal/registry"
	"github.com/jmylchreest/taskdock/internal/settings"
)

// backendError records a backend that failed to start.
type backendError struct {
	name string
	err  error
}

// buildRegistries creates the configured process and window registries.
// A backend that fails to start is left nil, so the core falls back to its
// no-op default.
func buildRegistries(cfg *config.DaemonConfig, logger *slog.Logger) (registry.Set, []io.Closer, []backendError) {
	var (
		set     registry.Set
		closers []io.Closer
		failed  []backendError
	)

	if cfg.Backend.Processes == config.BackendProcFS {
		protected := cfg.Backend.ProtectedPID
		if protected == 0 {
			protected = os.Getpid()
		}
		procs, err := registry.NewProcFS(registry.ProcFSOptions{
			Root:       cfg.Backend.ProcRoot,
			Shells:     cfg.Aggregate.CLIShells,
			Background: cfg.Aggregate.BackgroundPrograms,
			Protected:  protected,
			UID:        os.Getuid(),
			Logger:     logger.With("backend", config.BackendProcFS),
		})
		if err != nil {
			logger.Warn("process backend unavailable", "backend", config.BackendProcFS, "error", err)
			failed = append(failed, backendError{config.BackendProcFS, err})
		} else {
			set.Processes = procs
		}
	}

	if cfg.Backend.Windows == config.BackendX11 {
		wins, err := registry.NewX11Windows(registry.X11Options{
			Display: cfg.Backend.Display,
			Logger:  logger.With("backend", config.BackendX11),
		})
		if err != nil {
			logger.Warn("window backend unavailable", "backend", config.BackendX11, "error", err)
			failed = append(failed, backendError{config.BackendX11, err})
		} else {
			set.Windows = wins
			closers = append(closers, wins)
		}
	}

	return set, closers, failed
}

// OpenRegistries builds the configured backends for one-shot use outside
// taskdockd, with pinned programs read once from pinnedPath. Backends that
// failed are reported in err alongside the usable set. release closes the
// backends that did start.
func OpenRegistries(cfg *config.DaemonConfig, pinnedPath string, logger *slog.Logger) (set registry.Set, release func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	set, closers, failed := buildRegistries(cfg, logger)
	release = func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	var errs []error
	for _, f := range failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.name, f.err))
	}
	set.Settings = registry.NoSettings{}
	if pinned, perr := settings.LoadPinned(pinnedPath); perr != nil {
		errs = append(errs, perr)
	} else {
		set.Settings = registry.StaticSettings(pinned)
	}

	return set, release, errors.Join(errs...)
}

// DemoRegistries returns in-memory registries with a few sample programs.
// Killing a demo process removes its windows.
func DemoRegistries() registry.Set {
	procs := registry.NewMemoryProcesses(
		model.ProcessRecord{PID: 101, ProgramName: "firefox"},
		model.ProcessRecord{PID: 102, ProgramName: "firefox"},
		model.ProcessRecord{PID: 201, ProgramName: "kitty"},
		model.ProcessRecord{PID: 202, ProgramName: "kitty", IsMinimized: true},
		model.ProcessRecord{PID: 203, ProgramName: "bash", CLITerminal: true},
		model.ProcessRecord{PID: 301, ProgramName: "files"},
		model.ProcessRecord{PID: 401, ProgramName: "nm-applet", Background: true},
	)
	wins := registry.NewMemoryWindows(
		model.WindowRecord{WindowID: "0x1000001", PID: 101, Title: "Mozilla Firefox", IsMainWindow: true, IsFocused: true},
		model.WindowRecord{WindowID: "0x1000002", PID: 101, Title: "Downloads"},
		model.WindowRecord{WindowID: "0x1000003", PID: 102, Title: "Private Browsing", IsMainWindow: true},
		model.WindowRecord{WindowID: "0x2000001", PID: 201, Title: "~/src", IsMainWindow: true},
		model.WindowRecord{WindowID: "0x2000002", PID: 202, Title: "htop", IsMainWindow: true, IsMinimized: true},
		model.WindowRecord{WindowID: "0x3000001", PID: 301, Title: "Home", IsMainWindow: true},
	)
	procs.SetProtected(os.Getpid())
	procs.OnKill(func(pid int) {
		wins.RemovePID(pid)
	})

	return registry.Set{
		Processes: procs,
		Windows:   wins,
		Settings:  registry.StaticSettings{"files", "firefox", "editor"},
	}
}
