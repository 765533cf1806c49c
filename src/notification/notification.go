// Package notification shows desktop notifications and startup error dialogs.
package notification

import (
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/gen2brain/beeep"

	"stackfield-desktop/src/unread"
)

const (
	AppTitle       = "Stackfield"
	NewMessageBody = "You have new messages"
)

// Notifier posts one desktop notification.
type Notifier func(title, body, icon string) error

// Desktop raises a notification whenever the unread state enters Alert.
type Desktop struct {
	notify   Notifier
	icon     string
	headless func() bool

	mu    sync.Mutex
	state unread.State
}

// NewDesktop returns a Desktop posting through beeep. icon may be empty.
func NewDesktop(icon string) *Desktop {
	return &Desktop{
		notify:   func(title, body, icon string) error { return beeep.Notify(title, body, icon) },
		icon:     icon,
		headless: Headless,
	}
}

// Apply is an unread listener. Only Normal to Alert transitions notify.
func (d *Desktop) Apply(s unread.State) {
	d.mu.Lock()
	prev := d.state
	d.state = s
	d.mu.Unlock()

	if s != unread.Alert || prev == unread.Alert {
		return
	}
	d.Show(AppTitle, NewMessageBody)
}

// Show posts a notification. Failures are logged and otherwise ignored.
func (d *Desktop) Show(title, body string) {
	if body == "" || d.headless() {
		return
	}
	if err := d.notify(title, body, d.icon); err != nil {
		log.Printf("notification: %v", err)
	}
}

// Headless reports a Linux session without a display server.
func Headless() bool {
	return runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}
