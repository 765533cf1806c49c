// Package unread tracks whether the embedded page shows unread personal
// messages and reports changes to the presence indicator.
package unread

import (
	"fmt"
	"strings"
)

// State is the process-wide notification state.
type State int

const (
	Normal State = iota
	Alert
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Alert:
		return "alert"
	default:
		return "unknown"
	}
}

func stateFor(hasUnread bool) State {
	if hasUnread {
		return Alert
	}
	return Normal
}

// DomQueryError means the page could not be queried for unread badges.
type DomQueryError struct {
	Err error
}

func (e *DomQueryError) Error() string { return fmt.Sprintf("query unread indicator: %v", e.Err) }

func (e *DomQueryError) Unwrap() error { return e.Err }

// TitleHasUnread is the fallback used when the DOM cannot be queried: the
// site prefixes its title with "(n)" while messages are unread.
func TitleHasUnread(title string) bool {
	return strings.Contains(title, "(")
}
