// Package dbus implements the org.taskdock.Shell D-Bus interface.
// It provides the server that taskdockd exports (methods for hover, popup,
// selector and switcher input plus signals carrying view state), a client
// used by the CLI and TUI, and a sender for org.freedesktop.Notifications.
package dbus
