package unread

import (
	"context"
	"log"
	"sync"
	"time"

	"stackfield-desktop/src/logutil"
	"stackfield-desktop/src/scheduler"
)

// Page is the read-only view of the embedded page the poller needs.
type Page interface {
	// QueryUnreadIndicator reports whether a visible unread badge with a
	// count above zero exists. Failures are *DomQueryError.
	QueryUnreadIndicator(ctx context.Context) (bool, error)
	Title(ctx context.Context) (string, error)
}

// Listener receives state changes.
type Listener func(State)

// Options configures the poll schedule.
type Options struct {
	InitialDelay  time.Duration
	Interval      time.Duration
	TitleDebounce time.Duration
	FocusDebounce time.Duration
	QueryTimeout  time.Duration
}

// DefaultOptions matches the site's expected load time and badge refresh rate.
func DefaultOptions() Options {
	return Options{
		InitialDelay:  3 * time.Second,
		Interval:      5 * time.Second,
		TitleDebounce: 500 * time.Millisecond,
		FocusDebounce: time.Second,
		QueryTimeout:  5 * time.Second,
	}
}

// Poller checks the page on a schedule. All checks run on one goroutine and
// triggers that arrive while a check is queued are merged into it, so the
// latest completed check always decides the state.
type Poller struct {
	page  Page
	sched scheduler.Scheduler
	opts  Options
	debug *logutil.DebugLogger

	trigger chan struct{}

	mu          sync.Mutex
	current     State
	listeners   []Listener
	started     bool
	stopped     bool
	titleCancel scheduler.Cancel
	focusCancel scheduler.Cancel
	cancelLoop  context.CancelFunc
	loopDone    chan struct{}
}

// New returns a poller. The poller owns sched and stops it on Stop.
func New(page Page, sched scheduler.Scheduler, opts Options, debug *logutil.DebugLogger) *Poller {
	def := DefaultOptions()
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = def.InitialDelay
	}
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.TitleDebounce <= 0 {
		opts.TitleDebounce = def.TitleDebounce
	}
	if opts.FocusDebounce <= 0 {
		opts.FocusDebounce = def.FocusDebounce
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = def.QueryTimeout
	}
	return &Poller{
		page:    page,
		sched:   sched,
		opts:    opts,
		debug:   debug,
		trigger: make(chan struct{}, 1),
	}
}

// OnChange registers a listener. Listeners run in registration order on the
// poller goroutine.
func (p *Poller) OnChange(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Current returns the last applied state.
func (p *Poller) Current() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Start begins polling: one check after the initial delay, then one every
// interval. Call it when the page has finished loading; later calls are
// ignored.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancelLoop = cancel
	p.loopDone = make(chan struct{})
	p.mu.Unlock()

	go p.loop(loopCtx)

	p.sched.After(p.opts.InitialDelay, func() {
		p.Trigger()
		p.sched.Every(p.opts.Interval, p.Trigger)
	})
	log.Printf("unread: polling every %s after %s", p.opts.Interval, p.opts.InitialDelay)
}

// TitleChanged schedules a check shortly after the page title changes.
// Repeated calls within the debounce window collapse into one check.
func (p *Poller) TitleChanged() { p.debounce(&p.titleCancel, p.opts.TitleDebounce) }

// Focused schedules a check shortly after the window regains focus.
func (p *Poller) Focused() { p.debounce(&p.focusCancel, p.opts.FocusDebounce) }

func (p *Poller) debounce(slot *scheduler.Cancel, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if *slot != nil {
		(*slot)()
	}
	*slot = p.sched.After(d, p.Trigger)
}

// Trigger queues a check. It never blocks.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels all timers and ends the check loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel, done := p.cancelLoop, p.loopDone
	p.mu.Unlock()

	p.sched.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.trigger:
			p.check(ctx)
		}
	}
}

// check queries the DOM, falling back to the title heuristic. When neither
// works the state is left unchanged until the next check.
func (p *Poller) check(ctx context.Context) {
	qctx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
	defer cancel()

	hasUnread, err := p.page.QueryUnreadIndicator(qctx)
	if err != nil {
		p.debug.NotificationEvent("dom query failed, using title", err)
		title, terr := p.page.Title(qctx)
		if terr != nil {
			log.Printf("unread: check skipped: %v; title: %v", err, terr)
			return
		}
		hasUnread = TitleHasUnread(title)
	}
	p.Observe(hasUnread)
}

// Observe applies a detected value. Listeners are notified only when the
// state actually changes; it reports whether it did.
func (p *Poller) Observe(hasUnread bool) bool {
	next := stateFor(hasUnread)

	p.mu.Lock()
	if next == p.current {
		p.mu.Unlock()
		return false
	}
	p.current = next
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	if next == Alert {
		p.debug.NotificationEvent("alert activated")
	} else {
		p.debug.NotificationEvent("alert cleared")
	}
	for _, l := range listeners {
		notify(l, next)
	}
	return true
}

func notify(l Listener, s State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("unread: listener panicked: %v", r)
		}
	}()
	l(s)
}
