package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/FranksOps/keyvo/internal/provider"
)

// ErrResponseTooLarge is wrapped by a TransportError when a body exceeds the
// read limit.
var ErrResponseTooLarge = errors.New("response too large")

// TransportError reports that no usable response came back from a provider:
// the request failed outright, or the provider answered with a non-2xx status.
type TransportError struct {
	Provider   provider.Provider
	URL        string
	StatusCode int    // zero when no response was received
	Blocked    string // block source label, e.g. "Google Sorry", when detected
	PageTitle  string // <title> of an HTML error page, if any
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s request failed", e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Blocked != "" {
		fmt.Fprintf(&b, " (blocked by %s)", e.Blocked)
	} else if e.PageTitle != "" {
		fmt.Fprintf(&b, " (%s)", e.PageTitle)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
