// Package provider enumerates the upstream autocomplete services Keyvo relays to.
package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Provider identifies an upstream autocomplete service. The zero value is not
// a valid provider.
type Provider int

const (
	// WebSearch is the general web search provider (Google toolbar XML).
	WebSearch Provider = iota + 1
	// VideoSearch is the video platform provider (YouTube suggest JSON/JSONP).
	VideoSearch
)

// Default is used when the caller does not name a platform.
const Default = WebSearch

// ErrUnsupported is returned by Parse for any platform name other than the
// ones listed in Names.
var ErrUnsupported = errors.New("unsupported provider")

// All lists every provider in a stable order.
func All() []Provider {
	return []Provider{WebSearch, VideoSearch}
}

// Parse maps a platform name from the public API onto a Provider. An empty
// name selects Default. Matching is case-insensitive.
func Parse(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Default, nil
	case "google":
		return WebSearch, nil
	case "youtube":
		return VideoSearch, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

// Platform returns the public API name of the provider.
func (p Provider) Platform() string {
	switch p {
	case WebSearch:
		return "google"
	case VideoSearch:
		return "youtube"
	}
	return ""
}

// String returns a human-readable label, used in logs and error messages.
func (p Provider) String() string {
	switch p {
	case WebSearch:
		return "Google"
	case VideoSearch:
		return "YouTube"
	}
	return fmt.Sprintf("Provider(%d)", int(p))
}

// Valid reports whether p is one of the declared providers.
func (p Provider) Valid() bool {
	return p == WebSearch || p == VideoSearch
}
