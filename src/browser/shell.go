// Package browser runs the app window: a Chrome or Chromium instance in app
// mode driven over the DevTools protocol with chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	sysbrowser "github.com/pkg/browser"
	"github.com/sethvargo/go-retry"

	"stackfield-desktop/src/logutil"
	"stackfield-desktop/src/unread"
)

var ErrNotRunning = errors.New("browser not running")

// Options configures the app window.
type Options struct {
	StartURL     string
	AllowedHosts []string
	ChromePath   string
	ProfileDir   string
	Width        int
	Height       int
	// LoadAttempts bounds retries of the first navigation, which fails while
	// the network is still coming up after login.
	LoadAttempts uint64
}

// Shell owns the browser process and its pages. It also serves as the
// unread.Page of whichever main window is current.
type Shell struct {
	opts    Options
	policy  HostPolicy
	debug   *logutil.DebugLogger
	events  chan Event
	openURL func(string) error

	mu          sync.Mutex
	ctx         context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	main        *Page
	pages       map[target.ID]*Page
	undecided   map[target.ID]bool
	onPage      []func(*Page)
	visible     bool
}

// New returns a Shell. Start launches the browser.
func New(opts Options, debug *logutil.DebugLogger) *Shell {
	if opts.Width <= 0 {
		opts.Width = 1200
	}
	if opts.Height <= 0 {
		opts.Height = 800
	}
	if opts.LoadAttempts == 0 {
		opts.LoadAttempts = 5
	}
	return &Shell{
		opts:      opts,
		policy:    NewHostPolicy(opts.AllowedHosts),
		debug:     debug,
		events:    make(chan Event, 32),
		openURL:   sysbrowser.OpenURL,
		pages:     make(map[target.ID]*Page),
		undecided: make(map[target.ID]bool),
	}
}

// Events delivers page events. The channel is never closed.
func (s *Shell) Events() <-chan Event { return s.events }

// OnPage registers fn for every page the shell opens, main window included.
// Register before Start.
func (s *Shell) OnPage(fn func(*Page)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPage = append(s.onPage, fn)
}

// Running reports whether the main window is open.
func (s *Shell) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.main != nil
}

func (s *Shell) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("app", "about:blank"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(s.opts.Width, s.opts.Height),
	}
	if s.opts.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(s.opts.ProfileDir))
	}
	if s.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.opts.ChromePath))
	}
	return opts
}

// Start launches the browser and loads the start URL in the main window.
// It is a no-op while the main window is open.
func (s *Shell) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.main != nil {
		s.mu.Unlock()
		return nil
	}
	s.ctx = ctx
	s.mu.Unlock()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, s.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Printf))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	main := newPage(s, tabCtx, tabCancel, "main-window", true)
	if err := main.install(); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("prepare main window: %w", err)
	}

	s.mu.Lock()
	s.allocCancel = allocCancel
	s.browserCtx = tabCtx
	s.main = main
	s.pages[main.id] = main
	s.visible = true
	hooks := append(([]func(*Page))(nil), s.onPage...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(main)
	}
	chromedp.ListenBrowser(tabCtx, s.onBrowserEvent)
	s.grantPermissions(tabCtx)

	backoff := retry.WithMaxRetries(s.opts.LoadAttempts-1, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := main.run(ctx, chromedp.Navigate(s.opts.StartURL)); err != nil {
			log.Printf("browser: loading %s: %v", s.opts.StartURL, err)
			if errors.Is(err, ErrPageClosed) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", s.opts.StartURL, err)
	}
	log.Printf("browser: main window loaded %s", s.opts.StartURL)
	return nil
}

// grantPermissions pre-grants what the site asks for so Chrome does not
// prompt inside the app window.
func (s *Shell) grantPermissions(ctx context.Context) {
	origin := s.opts.StartURL
	if u, err := url.Parse(s.opts.StartURL); err == nil {
		origin = u.Scheme + "://" + u.Host
	}
	perms := []cdpbrowser.PermissionType{
		cdpbrowser.PermissionTypeDisplayCapture,
		cdpbrowser.PermissionTypeClipboardReadWrite,
		cdpbrowser.PermissionTypeClipboardSanitizedWrite,
		cdpbrowser.PermissionTypeNotifications,
	}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		bctx := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser)
		return cdpbrowser.GrantPermissions(perms).WithOrigin(origin).Do(bctx)
	}))
	for _, perm := range perms {
		s.debug.PermissionEvent(string(perm), err == nil)
	}
	if err != nil {
		log.Printf("browser: grant permissions: %v", err)
	}
}

// onBrowserEvent runs on the chromedp reader goroutine and must not block.
func (s *Shell) onBrowserEvent(ev any) {
	switch ev := ev.(type) {
	case *target.EventTargetCreated:
		s.considerPopup(ev.TargetInfo)
	case *target.EventTargetInfoChanged:
		s.mu.Lock()
		pending := ev.TargetInfo != nil && s.undecided[ev.TargetInfo.TargetID]
		s.mu.Unlock()
		if pending {
			s.considerPopup(ev.TargetInfo)
		}
	case *target.EventTargetDestroyed:
		go s.targetClosed(ev.TargetID)
	}
}

// considerPopup routes a tab opened by one of our pages: same-site tabs
// become pages, others open in the system browser.
func (s *Shell) considerPopup(info *target.Info) {
	if info == nil || info.Type != "page" || info.OpenerID == "" {
		return
	}
	s.mu.Lock()
	_, fromUs := s.pages[info.OpenerID]
	if !fromUs {
		s.mu.Unlock()
		return
	}
	if info.URL == "" || info.URL == "about:blank" {
		s.undecided[info.TargetID] = true
		s.mu.Unlock()
		return
	}
	delete(s.undecided, info.TargetID)
	s.mu.Unlock()

	if s.policy.Internal(info.URL) {
		go s.attachPopup(info.TargetID)
		return
	}
	go func() {
		s.OpenExternal(info.URL)
		s.closeTarget(info.TargetID)
	}()
}

func (s *Shell) attachPopup(id target.ID) {
	s.mu.Lock()
	parent := s.browserCtx
	s.mu.Unlock()
	if parent == nil {
		return
	}
	ctx, cancel := chromedp.NewContext(parent, chromedp.WithTargetID(id))
	p := newPage(s, ctx, cancel, "popup-"+shortID(id), false)
	if err := p.install(); err != nil {
		log.Printf("browser: attach popup %s: %v", id, err)
		cancel()
		return
	}

	s.mu.Lock()
	s.pages[p.id] = p
	hooks := append(([]func(*Page))(nil), s.onPage...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(p)
	}
	log.Printf("browser: attached %s", p.name)
}

func (s *Shell) closeTarget(id target.ID) {
	s.mu.Lock()
	parent := s.browserCtx
	s.mu.Unlock()
	if parent == nil {
		return
	}
	ctx, cancel := chromedp.NewContext(parent, chromedp.WithTargetID(id))
	defer cancel()
	if err := chromedp.Run(ctx, page.Close()); err != nil {
		log.Printf("browser: close %s: %v", id, err)
	}
}

// targetClosed forgets a page. Closing the main window shuts the browser
// down; Show starts it again.
func (s *Shell) targetClosed(id target.ID) {
	s.mu.Lock()
	delete(s.undecided, id)
	p, ok := s.pages[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pages, id)
	var closing []*Page
	allocCancel := func() {}
	if p.main {
		for pid, other := range s.pages {
			closing = append(closing, other)
			delete(s.pages, pid)
		}
		s.main = nil
		s.browserCtx = nil
		s.visible = false
		if s.allocCancel != nil {
			allocCancel = s.allocCancel
			s.allocCancel = nil
		}
	}
	s.mu.Unlock()

	p.Close()
	s.emit(Event{Kind: PageClosed, Page: p})
	for _, other := range closing {
		other.Close()
		s.emit(Event{Kind: PageClosed, Page: other})
	}
	allocCancel()
	log.Printf("browser: %s closed", p.name)
}

func (s *Shell) emit(ev Event) {
	ev.Main = ev.Page != nil && ev.Page.main
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// OpenExternal opens rawURL in the system browser.
func (s *Shell) OpenExternal(rawURL string) {
	if !External(rawURL) {
		log.Printf("browser: refusing to open %q externally", rawURL)
		return
	}
	if err := s.openURL(rawURL); err != nil {
		log.Printf("browser: open %s: %v", rawURL, err)
	}
}

func (s *Shell) mainPage() (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.main == nil {
		return nil, ErrNotRunning
	}
	return s.main, nil
}

// QueryUnreadIndicator queries the current main window.
func (s *Shell) QueryUnreadIndicator(ctx context.Context) (bool, error) {
	p, err := s.mainPage()
	if err != nil {
		return false, &unread.DomQueryError{Err: err}
	}
	return p.QueryUnreadIndicator(ctx)
}

// Title returns the current main window title.
func (s *Shell) Title(ctx context.Context) (string, error) {
	p, err := s.mainPage()
	if err != nil {
		return "", err
	}
	return p.Title(ctx)
}

// Reload reloads the main window.
func (s *Shell) Reload(ctx context.Context) error {
	p, err := s.mainPage()
	if err != nil {
		return err
	}
	return p.Reload(ctx)
}

// Show restores and focuses the main window, relaunching the browser if the
// window was closed.
func (s *Shell) Show(ctx context.Context) error {
	p, err := s.mainPage()
	if errors.Is(err, ErrNotRunning) {
		return s.Start(s.parentContext(ctx))
	}
	if err := p.Focus(ctx); err != nil {
		return err
	}
	s.setVisible(true)
	return nil
}

// Hide minimizes the main window.
func (s *Shell) Hide(ctx context.Context) error {
	p, err := s.mainPage()
	if err != nil {
		return err
	}
	if err := p.Minimize(ctx); err != nil {
		return err
	}
	s.setVisible(false)
	return nil
}

// Toggle shows a hidden window and hides a visible one.
func (s *Shell) Toggle(ctx context.Context) error {
	s.mu.Lock()
	visible := s.visible && s.main != nil
	s.mu.Unlock()
	if visible {
		return s.Hide(ctx)
	}
	return s.Show(ctx)
}

func (s *Shell) setVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = v
}

func (s *Shell) parentContext(fallback context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil && s.ctx.Err() == nil {
		return s.ctx
	}
	return fallback
}

// Close shuts the browser down.
func (s *Shell) Close() {
	s.mu.Lock()
	cancel := s.allocCancel
	s.allocCancel = nil
	s.main = nil
	s.browserCtx = nil
	s.pages = make(map[target.ID]*Page)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func shortID(id target.ID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
