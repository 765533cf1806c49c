// Package scheduler runs delayed and repeating callbacks that can all be
// cancelled together on shutdown.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Cancel deregisters one scheduled callback.
type Cancel func()

// Scheduler is the timer capability used by pollers.
type Scheduler interface {
	After(d time.Duration, fn func()) Cancel
	Every(d time.Duration, fn func()) Cancel
	Stop()
}

// CronScheduler runs repeating jobs on a robfig/cron runner and one-shot
// delays on time.AfterFunc. Intervals are rounded down to whole seconds with
// a one second minimum, as cron.Every does.
type CronScheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	nextID  uint64
	timers  map[uint64]*time.Timer
	stopped bool
}

// New starts a scheduler.
func New() *CronScheduler {
	c := cron.New()
	c.Start()
	return &CronScheduler{cron: c, timers: make(map[uint64]*time.Timer)}
}

// After runs fn once after d.
func (s *CronScheduler) After(d time.Duration, fn func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		stopped := s.stopped
		s.mu.Unlock()
		if live && !stopped {
			fn()
		}
	})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t, ok := s.timers[id]; ok {
			t.Stop()
			delete(s.timers, id)
		}
	}
}

// Every runs fn every d until cancelled or stopped.
func (s *CronScheduler) Every(d time.Duration, fn func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return func() {}
	}
	entry := s.cron.Schedule(cron.Every(d), cron.FuncJob(func() {
		if !s.isStopped() {
			fn()
		}
	}))
	return func() { s.cron.Remove(entry) }
}

// Stop cancels every pending timer and repeating job. Nothing fires after
// Stop returns, except a callback that was already running.
func (s *CronScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.cron.Stop()
}

func (s *CronScheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
