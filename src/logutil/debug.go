package logutil

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// DebugLogger writes diagnostic lines only while debug mode is on. A nil
// *DebugLogger is valid and logs nothing.
type DebugLogger struct {
	enabled atomic.Bool
	logf    func(format string, args ...any)
}

// NewDebugLogger returns a logger writing through the standard logger.
func NewDebugLogger(enabled bool) *DebugLogger {
	return NewDebugLoggerFunc(enabled, log.Printf)
}

// NewDebugLoggerFunc returns a logger writing through logf.
func NewDebugLoggerFunc(enabled bool, logf func(format string, args ...any)) *DebugLogger {
	d := &DebugLogger{logf: logf}
	d.enabled.Store(enabled)
	return d
}

// SetEnabled toggles debug output.
func (d *DebugLogger) SetEnabled(enabled bool) {
	if d == nil {
		return
	}
	d.enabled.Store(enabled)
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	d.logf("[DEBUG] Debug mode %s", state)
}

// Enabled reports whether debug output is on.
func (d *DebugLogger) Enabled() bool { return d != nil && d.enabled.Load() }

func (d *DebugLogger) Log(args ...any) {
	if !d.Enabled() {
		return
	}
	d.logf("[DEBUG] %s", strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (d *DebugLogger) Error(args ...any) {
	if !d.Enabled() {
		return
	}
	d.logf("[DEBUG ERROR] %s", strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (d *DebugLogger) event(area, event string, data []any) {
	if len(data) == 0 {
		d.Log(fmt.Sprintf("%s %s", area, event))
		return
	}
	d.Log(append([]any{fmt.Sprintf("%s %s:", area, event)}, data...)...)
}

func (d *DebugLogger) ScreenSharingEvent(event string, data ...any) {
	d.event("Screen sharing", event, data)
}

func (d *DebugLogger) NotificationEvent(event string, data ...any) {
	d.event("Notification", event, data)
}

func (d *DebugLogger) ClipboardEvent(event string, data ...any) {
	d.event("Clipboard", event, data)
}

func (d *DebugLogger) PermissionEvent(permission string, granted bool) {
	state := "denied"
	if granted {
		state = "granted"
	}
	d.Log(fmt.Sprintf("Permission %s:", permission), state)
}
