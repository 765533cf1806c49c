package screenshare

import (
	"sync"

	"github.com/google/uuid"

	"stackfield-desktop/src/once"
	"stackfield-desktop/src/picker"
)

// Status is the lifecycle state of a capture request.
type Status int

const (
	Pending Status = iota
	Resolved
	Rejected
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Request is one display-media call from the page. Its resolution callback is
// consumed by the first terminal transition; later ones are no-ops.
type Request struct {
	ID     string
	Origin string

	callback *once.Callback[picker.Result]
	onDone   func(*Request)

	mu     sync.Mutex
	status Status
	reason string
	result picker.Result
}

// NewRequest wraps the browser's resolution function.
func NewRequest(origin string, resolve func(picker.Result)) *Request {
	return &Request{
		ID:       uuid.NewString(),
		Origin:   origin,
		callback: once.New(resolve),
	}
}

// Resolve answers the request with a chosen source.
func (r *Request) Resolve(res picker.Result) bool {
	if res.Empty() {
		return r.Cancel()
	}
	return r.finish(Resolved, "", res)
}

// Reject answers with {} because no source could be offered.
func (r *Request) Reject(reason string) bool {
	return r.finish(Rejected, reason, picker.Result{})
}

// Cancel answers with {} because the user chose nothing.
func (r *Request) Cancel() bool {
	return r.finish(Cancelled, "", picker.Result{})
}

func (r *Request) finish(status Status, reason string, res picker.Result) bool {
	cb, ok := r.callback.Take()
	if !ok {
		return false
	}
	r.mu.Lock()
	r.status = status
	r.reason = reason
	r.result = res
	onDone := r.onDone
	r.mu.Unlock()

	if onDone != nil {
		onDone(r)
	}
	cb(res)
	return true
}

// Status returns the current state.
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Reason explains a rejection.
func (r *Request) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// Result is the value delivered to the browser, if any.
func (r *Request) Result() picker.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}
