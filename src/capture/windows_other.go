//go:build !linux

package capture

import "context"

// noWindows is used where window enumeration is not implemented; only
// screens are offered there.
type noWindows struct{}

func newWindowLister() WindowLister { return noWindows{} }

func (noWindows) ListWindows(context.Context) ([]Window, error) { return nil, nil }
