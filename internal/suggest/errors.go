package suggest

import (
	"fmt"

	"github.com/FranksOps/keyvo/internal/provider"
)

// ValidationError rejects a query before any upstream call is made.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("query parameter '%s' %s", e.Param, e.Reason)
}

// ErrEmptyQuery is returned for a query with no text.
var ErrEmptyQuery = &ValidationError{Param: "q", Reason: "is required"}

// ParseError means an upstream body did not match the provider's wire format.
// No partial suggestion list accompanies it.
type ParseError struct {
	Provider provider.Provider
	Format   string // "XML" or "JSON"
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse the upstream %s response: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
