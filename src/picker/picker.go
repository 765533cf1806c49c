// Package picker asks the user which screen or window to share.
package picker

import (
	"fmt"
	"log"
	"sync"

	"stackfield-desktop/src/capture"
	"stackfield-desktop/src/logutil"
	"stackfield-desktop/src/once"
)

// AudioLoopback asks the browser to capture system audio with the video.
const AudioLoopback = "loopback"

// Title is shown on the picker window.
const Title = "Select Screen or Window to Share"

// Result is what the browser receives for a display-media request: either
// {video, audio:"loopback"} or {} when nothing was chosen.
type Result struct {
	Video *capture.Source `json:"video,omitempty"`
	Audio string          `json:"audio,omitempty"`
}

// Select builds the result for a chosen source.
func Select(src capture.Source) Result {
	return Result{Video: &src, Audio: AudioLoopback}
}

// Empty reports whether no source was chosen.
func (r Result) Empty() bool { return r.Video == nil }

// Handlers is the picker result channel. The surface calls OnResult with the
// chosen source id ("" for an explicit cancel) and OnClosed when the window
// goes away.
type Handlers struct {
	OnResult func(sourceID string)
	OnClosed func()
}

// Surface is the UI that renders a source list.
type Surface interface {
	Open(title string, sources []capture.Source, h Handlers) error
	Close()
}

// RenderError means the surface could not be shown.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render picker: %v", e.Err) }

func (e *RenderError) Unwrap() error { return e.Err }

// Picker creates one session, with its own surface, per Show call.
type Picker struct {
	newSurface func() Surface
	debug      *logutil.DebugLogger
}

// New returns a picker that builds surfaces with newSurface.
func New(newSurface func() Surface, debug *logutil.DebugLogger) *Picker {
	return &Picker{newSurface: newSurface, debug: debug}
}

// Show opens a picker for sources and returns immediately. onResult fires
// exactly once: with the selection, with {} on cancel or close, or with an
// automatic choice when the surface cannot be rendered.
func (p *Picker) Show(sources []capture.Source, onResult func(Result)) *Session {
	p.debug.ScreenSharingEvent("showing picker with sources", len(sources))
	s := &Session{
		sources:  sources,
		callback: once.New(onResult),
		debug:    p.debug,
		done:     make(chan struct{}),
	}
	var surface Surface
	if p.newSurface != nil {
		surface = p.newSurface()
	}
	s.open(surface)
	return s
}

// Session is one picker window bound to one request.
type Session struct {
	sources  []capture.Source
	callback *once.Callback[Result]
	debug    *logutil.DebugLogger

	mu       sync.Mutex
	surface  Surface
	bound    bool
	released bool
	done     chan struct{}
}

func (s *Session) open(surface Surface) {
	if surface == nil {
		s.fallback(&RenderError{Err: fmt.Errorf("no picker surface available")})
		return
	}
	s.mu.Lock()
	s.surface = surface
	s.mu.Unlock()

	h, ok := s.bind()
	if !ok {
		return
	}
	if err := surface.Open(Title, s.sources, h); err != nil {
		s.fallback(&RenderError{Err: err})
	}
}

// bind registers the session's handlers. A second call on a bound or
// released session registers nothing.
func (s *Session) bind() (Handlers, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound || s.released {
		return Handlers{}, false
	}
	s.bound = true
	return Handlers{OnResult: s.handleResult, OnClosed: s.handleClosed}, true
}

func (s *Session) listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound && !s.released
}

func (s *Session) handleResult(sourceID string) {
	if !s.listening() {
		return
	}
	cb, ok := s.callback.Take()
	s.release()
	if !ok {
		return
	}
	if sourceID == "" {
		log.Printf("picker: user cancelled screen sharing")
		cb(Result{})
		return
	}
	src, found := s.find(sourceID)
	if !found {
		log.Printf("picker: selected source %q is no longer in the list", sourceID)
		cb(Result{})
		return
	}
	log.Printf("picker: user selected %q", src.Name)
	cb(Select(src))
}

func (s *Session) handleClosed() {
	if !s.listening() {
		return
	}
	s.debug.ScreenSharingEvent("picker window closed")
	cb, ok := s.callback.Take()
	s.release()
	if ok {
		cb(Result{})
	}
}

// fallback picks a source without asking: the first screen, else the first
// source of any kind, else nothing.
func (s *Session) fallback(err error) {
	log.Printf("picker: %v; using fallback selection", err)
	cb, ok := s.callback.Take()
	s.release()
	if !ok {
		return
	}
	src, found := AutoSelect(s.sources)
	if !found {
		cb(Result{})
		return
	}
	log.Printf("picker: auto-selecting %q", src.Name)
	cb(Select(src))
}

// Close dismisses the picker as if its window were closed.
func (s *Session) Close() { s.handleClosed() }

// Done is closed once the session has released its surface.
func (s *Session) Done() <-chan struct{} { return s.done }

// release closes the surface and unbinds the handlers exactly once. The lock
// is dropped before Close because surfaces report OnClosed synchronously.
func (s *Session) release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.bound = false
	surface := s.surface
	s.surface = nil
	s.mu.Unlock()

	if surface != nil {
		surface.Close()
	}
	close(s.done)
}

func (s *Session) find(id string) (capture.Source, bool) {
	for _, src := range s.sources {
		if src.ID == id {
			return src, true
		}
	}
	return capture.Source{}, false
}

// AutoSelect returns the first screen source, else the first source.
func AutoSelect(sources []capture.Source) (capture.Source, bool) {
	for _, src := range sources {
		if src.IsScreen() {
			return src, true
		}
	}
	if len(sources) > 0 {
		return sources[0], true
	}
	return capture.Source{}, false
}
