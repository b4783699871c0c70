package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/dbus"
	"github.com/jmylchreest/taskdock/internal/loop"
	"github.com/jmylchreest/taskdock/internal/registry"
	"github.com/jmylchreest/taskdock/internal/settings"
)

// Options configures a Daemon.
type Options struct {
	Config     *config.DaemonConfig
	ConfigPath string // daemon.toml, empty = default location
	PinnedPath string // pinned.toml, empty = default location

	// Registries replaces the configured backends when non-nil (demo mode).
	Registries *registry.Set

	Version string
	Logger  *slog.Logger
}

// Daemon is taskdockd: the shell core on an event loop, exported over D-Bus.
type Daemon struct {
	opts   Options
	logger *slog.Logger

	loop     *loop.Loop
	shell    *Shell
	server   *dbus.ShellServer
	pinned   *settings.PinnedStore
	watcher  *ConfigWatcher
	notifier *InternalNotifier

	closers []io.Closer
	failed  []backendError
}

// New builds the daemon. Backends that fail to start are logged and
// replaced with no-op registries.
func New(opts Options) (*Daemon, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == nil {
		opts.Config = config.DefaultDaemonConfig()
	}
	if opts.PinnedPath == "" {
		opts.PinnedPath = config.PinnedPath()
	}
	logger := opts.Logger

	d := &Daemon{
		opts:     opts,
		logger:   logger,
		loop:     loop.New(logger.With("component", "loop")),
		notifier: NewInternalNotifier(logger.With("component", "notifier")),
	}

	var reg registry.Set
	if opts.Registries != nil {
		reg = *opts.Registries
		logger.Info("using supplied registries")
	} else {
		reg, d.closers, d.failed = buildRegistries(opts.Config, logger)

		d.pinned = settings.NewPinnedStore(opts.PinnedPath, logger.With("component", "pinned"))
		if err := d.pinned.Load(); err != nil {
			logger.Warn("failed to load pinned programs", "path", opts.PinnedPath, "error", err)
		}
		reg.Settings = d.pinned
	}

	watcher, err := NewConfigWatcher(opts.ConfigPath, logger.With("component", "config"))
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	d.watcher = watcher

	d.shell = NewShell(d.loop, d.loop, reg, opts.Config, logger)
	d.server = dbus.NewShellServer(d.shell, logger.With("component", "dbus"))
	return d, nil
}

// Shell returns the daemon's core.
func (d *Daemon) Shell() *Shell {
	return d.shell
}

// Run serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.server.Start(); err != nil {
		d.close()
		return err
	}
	d.shell.SetEmitter(d.server)

	d.notifier.SetNotifyHandler(func(n *dbus.DesktopNotification) (uint32, error) {
		nctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return dbus.Notify(nctx, d.server.Connection(), n)
	})
	for _, f := range d.failed {
		d.notifier.NotifyBackendUnavailable(f.name, f.err)
	}

	if d.pinned != nil {
		d.pinned.SetChangeCallback(func([]string) {
			d.loop.Post(d.shell.Refresh)
		})
		if err := d.pinned.Watch(); err != nil {
			d.logger.Warn("pinned programs will not reload", "error", err)
		}
	}

	d.watcher.SetReloadCallback(func(cfg *config.DaemonConfig) {
		d.loop.Post(func() {
			d.shell.ApplyConfig(cfg)
		})
		d.notifier.NotifyConfigReloaded()
	})
	d.watcher.SetErrorCallback(d.notifier.NotifyConfigError)
	if err := d.watcher.Start(ctx, d.opts.Config); err != nil {
		d.logger.Warn("config hot reload disabled", "error", err)
	}

	d.loop.Post(d.shell.Start)
	d.logger.Info("taskdockd started", "version", d.opts.Version)

	err := d.loop.Run(ctx)

	// The loop has stopped; nothing else touches the shell now.
	d.shell.Stop()
	d.close()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) close() {
	d.watcher.Stop()
	if d.pinned != nil {
		if err := d.pinned.Stop(); err != nil {
			d.logger.Debug("failed to stop pinned watcher", "error", err)
		}
	}
	if err := d.server.Stop(); err != nil {
		d.logger.Warn("failed to stop D-Bus server", "error", err)
	}
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			d.logger.Debug("failed to close backend", "error", err)
		}
	}
	d.logger.Info("taskdockd stopped")
}
