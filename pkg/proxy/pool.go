package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when reporting on a proxy the pool does not hold.
var ErrNotFound = errors.New("proxy: not in pool")

type entry struct {
	url           *url.URL
	failures      int
	disabledUntil time.Time
}

// Config defines settings for the proxy Pool.
type Config struct {
	// MaxFailures consecutive failures disable a proxy for Cooldown.
	MaxFailures int
	Cooldown    time.Duration
}

// Pool rotates outbound requests across proxies and benches ones that keep
// failing. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool creates a proxy pool from raw URLs. A URL without a scheme is
// treated as http.
func NewPool(cfg Config, rawURLs ...string) (*Pool, error) {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}

	p := &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		p.entries = append(p.entries, &entry{url: u})
	}
	return p, nil
}

// Len reports how many proxies the pool holds, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next healthy proxy, or nil when the pool is empty or every
// proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)

		if e.disabledUntil.IsZero() {
			return e.url
		}
		if now.After(e.disabledUntil) {
			e.disabledUntil = time.Time{}
			e.failures = 0
			return e.url
		}
	}
	return nil
}

// Report records the outcome of a request made through u.
func (p *Pool) Report(u *url.URL, ok bool) error {
	if u == nil {
		return errors.New("proxy: url cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target := u.String()
	for _, e := range p.entries {
		if e.url.String() != target {
			continue
		}
		if ok {
			if e.failures > 0 {
				e.failures--
			}
			return nil
		}
		e.failures++
		if e.failures >= p.maxFailures {
			e.disabledUntil = p.now().Add(p.cooldown)
		}
		return nil
	}
	return ErrNotFound
}
