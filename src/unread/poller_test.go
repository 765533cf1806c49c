package unread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackfield-desktop/src/scheduler"
)

type fakePage struct {
	mu       sync.Mutex
	unread   bool
	queryErr error
	title    string
	titleErr error
	queries  int
}

func (f *fakePage) QueryUnreadIndicator(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return false, &DomQueryError{Err: f.queryErr}
	}
	return f.unread, nil
}

func (f *fakePage) Title(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, f.titleErr
}

func (f *fakePage) set(fn func(*fakePage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type timer struct {
	d         time.Duration
	fn        func()
	repeat    bool
	cancelled bool
}

// manualScheduler fires callbacks only when the test asks it to.
type manualScheduler struct {
	mu      sync.Mutex
	timers  []*timer
	stopped bool
}

func (m *manualScheduler) add(d time.Duration, fn func(), repeat bool) scheduler.Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &timer{d: d, fn: fn, repeat: repeat}
	m.timers = append(m.timers, t)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.cancelled = true
	}
}

func (m *manualScheduler) After(d time.Duration, fn func()) scheduler.Cancel {
	return m.add(d, fn, false)
}

func (m *manualScheduler) Every(d time.Duration, fn func()) scheduler.Cancel {
	return m.add(d, fn, true)
}

func (m *manualScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// fire runs every live timer with delay d; one-shot timers are consumed.
func (m *manualScheduler) fire(d time.Duration) int {
	m.mu.Lock()
	var due []func()
	for _, t := range m.timers {
		if t.d == d && !t.cancelled && !m.stopped {
			due = append(due, t.fn)
			if !t.repeat {
				t.cancelled = true
			}
		}
	}
	m.mu.Unlock()
	for _, fn := range due {
		fn()
	}
	return len(due)
}

func (m *manualScheduler) live(d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.d == d && !t.cancelled {
			n++
		}
	}
	return n
}

type changes struct {
	mu     sync.Mutex
	states []State
}

func (c *changes) record(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, s)
}

func (c *changes) all() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]State(nil), c.states...)
}

func newPoller(page Page) (*Poller, *manualScheduler, *changes) {
	sched := &manualScheduler{}
	p := New(page, sched, DefaultOptions(), nil)
	ch := &changes{}
	p.OnChange(ch.record)
	return p, sched, ch
}

func TestObserveIsIdempotent(t *testing.T) {
	p, _, ch := newPoller(&fakePage{})

	for i := 0; i < 5; i++ {
		p.Observe(true)
	}
	assert.Equal(t, []State{Alert}, ch.all())

	for i := 0; i < 5; i++ {
		p.Observe(false)
	}
	assert.Equal(t, []State{Alert, Normal}, ch.all())
	assert.Equal(t, Normal, p.Current())
}

func TestObserveNormalFromStartIsNoop(t *testing.T) {
	p, _, ch := newPoller(&fakePage{})
	assert.False(t, p.Observe(false))
	assert.Empty(t, ch.all())
}

func TestScheduleAfterStart(t *testing.T) {
	page := &fakePage{unread: true}
	p, sched, ch := newPoller(page)
	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	opts := DefaultOptions()
	require.Equal(t, 1, sched.live(opts.InitialDelay))
	assert.Equal(t, 0, sched.live(opts.Interval))

	sched.fire(opts.InitialDelay)
	require.Eventually(t, func() bool { return p.Current() == Alert }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sched.live(opts.Interval))

	page.set(func(f *fakePage) { f.unread = false })
	sched.fire(opts.Interval)
	require.Eventually(t, func() bool { return p.Current() == Normal }, time.Second, 5*time.Millisecond)

	sched.fire(opts.Interval)
	assert.Equal(t, []State{Alert, Normal}, ch.all())
}

func TestDomFailureFallsBackToTitle(t *testing.T) {
	page := &fakePage{queryErr: errors.New("page not ready"), title: "(2) Stackfield"}
	p, sched, _ := newPoller(page)
	p.Start(context.Background())
	defer p.Stop()

	sched.fire(DefaultOptions().InitialDelay)
	require.Eventually(t, func() bool { return p.Current() == Alert }, time.Second, 5*time.Millisecond)

	page.set(func(f *fakePage) { f.title = "Stackfield" })
	p.Trigger()
	require.Eventually(t, func() bool { return p.Current() == Normal }, time.Second, 5*time.Millisecond)
}

func TestBothQueriesFailKeepsState(t *testing.T) {
	page := &fakePage{unread: true}
	p, _, ch := newPoller(page)
	p.Start(context.Background())
	defer p.Stop()

	p.Trigger()
	require.Eventually(t, func() bool { return p.Current() == Alert }, time.Second, 5*time.Millisecond)

	page.set(func(f *fakePage) {
		f.queryErr = errors.New("destroyed")
		f.titleErr = errors.New("destroyed")
	})
	p.Trigger()
	require.Eventually(t, func() bool {
		page.mu.Lock()
		defer page.mu.Unlock()
		return page.queries >= 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, Alert, p.Current())
	assert.Equal(t, []State{Alert}, ch.all())
}

func TestTitleAndFocusAreDebounced(t *testing.T) {
	p, sched, _ := newPoller(&fakePage{})
	opts := DefaultOptions()

	p.TitleChanged()
	p.TitleChanged()
	p.TitleChanged()
	p.Focused()
	p.Focused()

	assert.Equal(t, 1, sched.live(opts.TitleDebounce))
	assert.Equal(t, 1, sched.live(opts.FocusDebounce))
}

func TestTriggerCoalesces(t *testing.T) {
	p, _, _ := newPoller(&fakePage{})
	for i := 0; i < 10; i++ {
		p.Trigger()
	}
	assert.Len(t, p.trigger, 1)
}

func TestStopStopsScheduler(t *testing.T) {
	p, sched, _ := newPoller(&fakePage{})
	p.Start(context.Background())
	p.Stop()
	p.Stop()

	assert.True(t, sched.stopped)
	assert.Zero(t, sched.fire(DefaultOptions().InitialDelay))

	p.TitleChanged()
	assert.Zero(t, sched.live(DefaultOptions().TitleDebounce))
}

func TestListenerPanicDoesNotStopOthers(t *testing.T) {
	p, _, ch := newPoller(&fakePage{})
	p.OnChange(func(State) { panic("tray gone") })
	second := &changes{}
	p.OnChange(second.record)

	assert.NotPanics(t, func() { p.Observe(true) })
	assert.Equal(t, []State{Alert}, ch.all())
	assert.Equal(t, []State{Alert}, second.all())
}

func TestTitleHasUnread(t *testing.T) {
	assert.True(t, TitleHasUnread("(3) Stackfield"))
	assert.False(t, TitleHasUnread("Stackfield"))
	assert.Equal(t, "alert", Alert.String())
}
