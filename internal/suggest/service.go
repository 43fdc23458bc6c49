// Package suggest turns a keyword query into an ordered list of autocomplete
// suggestions from one upstream provider.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/keyvo/internal/metrics"
	"github.com/FranksOps/keyvo/internal/provider"
	"github.com/FranksOps/keyvo/internal/upstream"
)

// Query is one suggestion lookup.
type Query struct {
	Text     string
	Region   string // two-letter country code, WebSearch only
	Provider provider.Provider
}

// Validate rejects queries that must never reach an upstream.
func (q Query) Validate() error {
	if q.Text == "" {
		return ErrEmptyQuery
	}
	if !q.Provider.Valid() {
		return fmt.Errorf("suggest: %w: %v", provider.ErrUnsupported, q.Provider)
	}
	return nil
}

// Fetcher retrieves a provider's raw response. *upstream.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, p provider.Provider, query, region string) (*upstream.RawResponse, error)
}

// Service composes fetching and normalization. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewService wires a Service around fetcher.
func NewService(fetcher Fetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, logger: logger}
}

// Suggest validates q, performs exactly one upstream request and normalizes
// the result. Errors are *ValidationError, provider.ErrUnsupported,
// *upstream.TransportError or *ParseError; none are retried.
func (s *Service) Suggest(ctx context.Context, q Query) ([]string, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	raw, err := s.fetcher.Fetch(ctx, q.Provider, q.Text, q.Region)
	if err != nil {
		return nil, err
	}

	suggestions, err := Normalize(q.Provider, raw.Text)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			metrics.RecordNormalizeError(q.Provider.Platform())
			s.logger.Warn("upstream response did not parse",
				"provider", q.Provider.Platform(), "bytes", raw.Bytes, "error", pe.Err)
		}
		return nil, err
	}

	metrics.RecordSuggestions(q.Provider.Platform(), len(suggestions))
	s.logger.Debug("suggestions normalized",
		"provider", q.Provider.Platform(), "query", q.Text, "region", q.Region, "count", len(suggestions))
	return suggestions, nil
}
