package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config defines the setup for the HTTP Client.
type Config struct {
	// Timeout bounds a whole exchange. Zero leaves it to the transport and the
	// caller's context.
	Timeout time.Duration
	// MaxRedirects caps redirect hops. Zero keeps the net/http default of 10;
	// a negative value returns the first redirect response unfollowed.
	MaxRedirects int
	// Transport is typically a fingerprinted transport.
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with a context-first Do.
type Client struct {
	*http.Client
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) *Client {
	c := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
	}

	switch {
	case cfg.MaxRedirects < 0:
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case cfg.MaxRedirects > 0:
		limit := cfg.MaxRedirects
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return fmt.Errorf("httpclient: stopped after %d redirects", limit)
			}
			return nil
		}
	}

	return &Client{Client: c}
}

// Do executes req bound to ctx. Cancelling ctx aborts the exchange, which is
// how an inbound client disconnect reaches the upstream call.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	resp, err := c.Client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
