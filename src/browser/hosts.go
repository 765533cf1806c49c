package browser

import (
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// HostPolicy decides which URLs stay inside the app window.
type HostPolicy struct {
	allowed map[string]struct{}
}

// NewHostPolicy builds a policy from host names. Case and surrounding
// whitespace are ignored.
func NewHostPolicy(hosts []string) HostPolicy {
	clean := lo.Compact(lo.Map(hosts, func(h string, _ int) string {
		return strings.ToLower(strings.TrimSpace(h))
	}))
	return HostPolicy{allowed: lo.SliceToMap(clean, func(h string) (string, struct{}) {
		return h, struct{}{}
	})}
}

// Hosts returns the allowed host names in no particular order.
func (p HostPolicy) Hosts() []string { return lo.Keys(p.allowed) }

// Internal reports whether rawURL should load in the app. Blank and
// in-page schemes are internal; http(s) URLs are internal only for allowed
// hosts; everything else goes to the system browser.
func (p HostPolicy) Internal(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "about", "data", "blob", "javascript":
		return true
	case "http", "https":
		_, ok := p.allowed[strings.ToLower(u.Hostname())]
		return ok
	default:
		return false
	}
}

// External reports whether rawURL can be handed to the system browser.
func External(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	default:
		return false
	}
}
