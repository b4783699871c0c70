// Package daemon provides the main orchestration for taskdockd.
// It runs the taskbar core on a single event loop and connects it to the
// registries, the D-Bus control server, the pinned programs store,
// configuration hot-reload and desktop notifications.
package daemon
