// Package tray shows the presence indicator: a tray icon that switches
// between the normal and alert images and a small menu for the window. It
// runs on the fyne app's own system tray so one native loop drives both the
// tray and the picker windows.
package tray

import (
	"errors"
	"log"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/systray"

	"stackfield-desktop/src/unread"
)

const (
	TooltipNormal = "Stackfield"
	TooltipAlert  = "Stackfield - New messages"
)

var errNoTray = errors.New("system tray not supported by this driver")

// Config holds icon paths and menu callbacks. Nil callbacks disable the item.
type Config struct {
	IconPath      string
	AlertIconPath string
	DebugEnabled  bool

	OnToggleWindow func()
	OnReload       func()
	OnDebug        func(enabled bool)
	OnQuit         func()
}

// backend is the slice of the tray API the indicator drives.
type backend interface {
	SetMenu(*fyne.Menu)
	SetIcon([]byte)
	SetTooltip(string)
}

// fyneBackend hands every change to the fyne main loop.
type fyneBackend struct {
	app desktop.App
}

func (b fyneBackend) SetMenu(m *fyne.Menu) { fyne.Do(func() { b.app.SetSystemTrayMenu(m) }) }

func (b fyneBackend) SetIcon(data []byte) {
	res := fyne.NewStaticResource("stackfield-tray.png", data)
	fyne.Do(func() { b.app.SetSystemTrayIcon(res) })
}

// SetTooltip goes straight to systray; fyne starts it with the tray menu.
func (b fyneBackend) SetTooltip(s string) { fyne.Do(func() { systray.SetTooltip(s) }) }

// Indicator mirrors the unread state in the system tray.
type Indicator struct {
	cfg    Config
	normal []byte
	alert  []byte

	mu    sync.Mutex
	be    backend
	menu  *fyne.Menu
	debug *fyne.MenuItem
	state unread.State
}

// New loads the icons. The tray is not shown until Install.
func New(cfg Config) *Indicator {
	return &Indicator{
		cfg:    cfg,
		normal: loadIcon(cfg.IconPath, NormalIcon),
		alert:  loadIcon(cfg.AlertIconPath, AlertIcon),
	}
}

// Install puts the indicator on a's system tray. It fails when the fyne
// driver has no tray (mobile, or a headless test driver).
func (i *Indicator) Install(a fyne.App) error {
	desk, ok := a.(desktop.App)
	if !ok {
		return errNoTray
	}
	i.attach(fyneBackend{app: desk})
	return nil
}

// attach builds the menu and renders the current state on be.
func (i *Indicator) attach(be backend) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.be = be
	i.menu = i.buildMenu()
	be.SetMenu(i.menu)
	i.render()
}

// Apply switches icon and tooltip. It may be called before Install; the last
// state wins once the tray exists.
func (i *Indicator) Apply(s unread.State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s
	if i.be != nil {
		i.render()
	}
}

// State returns the last applied state.
func (i *Indicator) State() unread.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Tooltip returns the tooltip shown for s.
func Tooltip(s unread.State) string {
	if s == unread.Alert {
		return TooltipAlert
	}
	return TooltipNormal
}

func (i *Indicator) icon(s unread.State) []byte {
	if s == unread.Alert {
		return i.alert
	}
	return i.normal
}

// render must be called with i.mu held.
func (i *Indicator) render() {
	i.be.SetIcon(i.icon(i.state))
	i.be.SetTooltip(Tooltip(i.state))
}

func (i *Indicator) buildMenu() *fyne.Menu {
	i.debug = fyne.NewMenuItem("Debug Mode", i.toggleDebug)
	i.debug.Checked = i.cfg.DebugEnabled

	quit := fyne.NewMenuItem("Quit", func() {
		log.Printf("tray: quit requested")
		call(i.cfg.OnQuit)
	})
	quit.IsQuit = true

	return fyne.NewMenu("Stackfield",
		fyne.NewMenuItem("Show/Hide Window", func() { call(i.cfg.OnToggleWindow) }),
		fyne.NewMenuItem("Reload", func() { call(i.cfg.OnReload) }),
		fyne.NewMenuItemSeparator(),
		i.debug,
		fyne.NewMenuItemSeparator(),
		quit,
	)
}

func (i *Indicator) toggleDebug() {
	i.mu.Lock()
	i.debug.Checked = !i.debug.Checked
	enabled := i.debug.Checked
	i.be.SetMenu(i.menu)
	i.mu.Unlock()

	if i.cfg.OnDebug != nil {
		i.cfg.OnDebug(enabled)
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
