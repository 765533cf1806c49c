// Package screenshare answers the page's screen-sharing requests by listing
// capture sources and asking the user to pick one.
package screenshare

import (
	"context"
	"log"
	"sync"

	"stackfield-desktop/src/capture"
	"stackfield-desktop/src/logutil"
	"stackfield-desktop/src/picker"
)

const (
	ReasonEnumerationFailed = "enumeration failed"
	ReasonNoSources         = "no sources available"
	ReasonInternalError     = "internal error"
)

// SourcePicker shows a picker session for a source list.
type SourcePicker interface {
	Show(sources []capture.Source, onResult func(picker.Result)) *picker.Session
}

// DisplayMediaHandler is invoked by a browser context for each display-media
// request. resolve must be called exactly once.
type DisplayMediaHandler func(ctx context.Context, resolve func(picker.Result))

// Registrar is a browser context that can raise display-media requests.
type Registrar interface {
	Name() string
	SetDisplayMediaHandler(h DisplayMediaHandler)
}

// Coordinator drives enumeration and picking for every request. It holds no
// per-request state besides the in-flight set.
type Coordinator struct {
	provider capture.Provider
	picker   SourcePicker
	debug    *logutil.DebugLogger

	mu       sync.Mutex
	inflight map[string]*Request
}

// New returns a coordinator.
func New(provider capture.Provider, p SourcePicker, debug *logutil.DebugLogger) *Coordinator {
	return &Coordinator{
		provider: provider,
		picker:   p,
		debug:    debug,
		inflight: make(map[string]*Request),
	}
}

// Register routes r's display-media requests to this coordinator. Every call
// gets its own Request, so two contexts never share a callback slot.
func (c *Coordinator) Register(r Registrar) {
	origin := r.Name()
	r.SetDisplayMediaHandler(func(ctx context.Context, resolve func(picker.Result)) {
		c.debug.ScreenSharingEvent("requested", origin)
		c.HandleRequest(ctx, NewRequest(origin, resolve))
	})
	log.Printf("screenshare: display-media handler registered on %s", origin)
}

// HandleRequest enumerates sources and either rejects req right away or
// hands it to a picker session. It returns once the picker is shown; the
// request resolves later through the session.
func (c *Coordinator) HandleRequest(ctx context.Context, req *Request) {
	c.track(req)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("screenshare: request %s panicked: %v", req.ID, r)
			req.Reject(ReasonInternalError)
		}
	}()

	sources, err := c.provider.ListSources(ctx)
	if err != nil {
		log.Printf("screenshare: %v", err)
		c.debug.Error("Error in handleDisplayMediaRequest:", err)
		req.Reject(ReasonEnumerationFailed)
		return
	}

	c.debug.ScreenSharingEvent("sources found", len(sources))
	if len(sources) == 0 {
		c.debug.ScreenSharingEvent("no sources available")
		req.Reject(ReasonNoSources)
		return
	}

	session := c.picker.Show(sources, func(res picker.Result) {
		outcome := "cancelled"
		if !res.Empty() {
			outcome = "selected"
		}
		c.debug.ScreenSharingEvent("picker result", outcome)
		req.Resolve(res)
	})
	if session == nil {
		req.Reject(ReasonInternalError)
		return
	}

	go func() {
		select {
		case <-session.Done():
		case <-ctx.Done():
			session.Close()
		}
	}()
}

func (c *Coordinator) track(req *Request) {
	req.mu.Lock()
	req.onDone = c.untrack
	req.mu.Unlock()
	c.mu.Lock()
	c.inflight[req.ID] = req
	c.mu.Unlock()
}

func (c *Coordinator) untrack(req *Request) {
	c.mu.Lock()
	delete(c.inflight, req.ID)
	c.mu.Unlock()
	log.Printf("screenshare: request %s from %s %s", req.ID, req.Origin, req.Status())
}

// Pending returns the number of unresolved requests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}
