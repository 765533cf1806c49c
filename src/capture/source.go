package capture

import (
	"fmt"
	"image"
	"strings"
)

// Kind tells screens and windows apart.
type Kind string

const (
	KindScreen Kind = "screen"
	KindWindow Kind = "window"
)

// Source is one capturable screen or window. IDs are namespaced by kind
// ("screen:0", "window:12") and are unique within a single enumeration only.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Thumbnail is a small preview; nil when it could not be rendered.
	Thumbnail image.Image `json:"-"`
}

// Kind derives the source kind from the id prefix.
func (s Source) Kind() Kind {
	prefix, _, _ := strings.Cut(s.ID, ":")
	return Kind(prefix)
}

// IsScreen reports whether the source is a whole screen.
func (s Source) IsScreen() bool { return s.Kind() == KindScreen }

func screenID(n int) string     { return fmt.Sprintf("%s:%d", KindScreen, n) }
func windowID(id uint32) string { return fmt.Sprintf("%s:%d", KindWindow, id) }

// EnumerationError reports that the OS could not list capture sources.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate capture sources: %v", e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }
