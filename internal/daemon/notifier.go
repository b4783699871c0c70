package daemon

import (
	"log/slog"
	"sync"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/taskdock/internal/dbus"
)

// NotificationLevel indicates the urgency/severity of an internal notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// NotifyHandler delivers a desktop notification and returns its id.
type NotifyHandler func(notification *dbus.DesktopNotification) (uint32, error)

// InternalNotifier sends desktop notifications about taskdockd events.
// Repeats of the same key are rate limited.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time

	notifyHandler NotifyHandler

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	enabled bool
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		now:            time.Now,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		enabled:        true,
	}
}

// SetNotifyHandler sets the function that delivers notifications.
func (n *InternalNotifier) SetNotifyHandler(handler NotifyHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifyHandler = handler
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between duplicate notifications.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends a notification unless the same key was sent within the
// minimum interval.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	handler := n.notifyHandler
	if handler == nil {
		n.mu.Unlock()
		n.logger.Debug("internal notification skipped: no handler", "summary", summary)
		return
	}

	now := n.now()
	if lastTime, ok := n.lastNotifyTime[key]; ok && now.Sub(lastTime) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
		return
	}
	n.lastNotifyTime[key] = now
	n.mu.Unlock()

	urgency := dbus.UrgencyNormal
	icon := "dialog-warning"
	switch level {
	case NotificationLevelInfo:
		urgency = dbus.UrgencyLow
		icon = "dialog-information"
	case NotificationLevelError:
		urgency = dbus.UrgencyCritical
		icon = "dialog-error"
	}

	notification := dbus.NewDesktopNotification(summary, body, urgency)
	notification.AppIcon = icon
	notification.Hints["desktop-entry"] = godbus.MakeVariant("taskdockd")
	notification.ExpireTimeout = 5000

	n.logger.Debug("sending internal notification", "key", key, "summary", summary, "level", level)

	if _, err := handler(notification); err != nil {
		n.logger.Warn("failed to send internal notification", "key", key, "error", err)
	}
}

// NotifyConfigReloaded sends a notification about config being reloaded.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify(
		"config-reload",
		"Configuration Reloaded",
		"taskdockd configuration has been successfully reloaded.",
		NotificationLevelInfo,
	)
}

// NotifyConfigError sends a notification about config validation error.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify(
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyBackendUnavailable reports a registry backend that failed to start.
func (n *InternalNotifier) NotifyBackendUnavailable(backend string, err error) {
	n.Notify(
		"backend-"+backend,
		"Backend Unavailable",
		"The "+backend+" backend could not be started: "+err.Error(),
		NotificationLevelError,
	)
}
