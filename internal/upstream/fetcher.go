// Package upstream issues the single outbound request behind every suggestion
// lookup and turns the response body into text.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/keyvo/internal/fingerprint"
	"github.com/FranksOps/keyvo/internal/metrics"
	"github.com/FranksOps/keyvo/internal/provider"
	"github.com/FranksOps/keyvo/pkg/httpclient"
	"github.com/FranksOps/keyvo/pkg/proxy"
	"github.com/FranksOps/keyvo/pkg/useragent"
)

const (
	DefaultWebSearchURL   = "http://google.com"
	DefaultVideoSearchURL = "http://suggestqueries.google.com"

	// maxBodyBytes caps how much of an upstream body is read. Suggest payloads
	// are a few kilobytes.
	maxBodyBytes = 1 << 20
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures the upstream client.
type FetchConfig struct {
	// WebSearchURL and VideoSearchURL are scheme://host bases; the
	// /complete/search path and query are appended.
	WebSearchURL   string
	VideoSearchURL string
	// Timeout of zero leaves the deadline to the inbound request context.
	Timeout time.Duration
	// MaxRedirects follows httpclient.Config: zero is the net/http default,
	// negative disables following.
	MaxRedirects int
	// WebSearchDecode is the policy for toolbar XML bodies. The zero value
	// (DecodeRaw) selects DecodeIgnore, since the XML parser needs valid UTF-8.
	WebSearchDecode DecodePolicy
	Fingerprint     fingerprint.Profile
	UAPool          *useragent.Pool
	// RandomUA picks User-Agents at random instead of round-robin.
	RandomUA  bool
	ProxyPool *proxy.Pool
	Logger    *slog.Logger
}

// RawResponse is an upstream body decoded to text, before normalization.
type RawResponse struct {
	Provider   provider.Provider
	URL        string
	StatusCode int
	Text       string
	Bytes      int
	Duration   time.Duration
}

// Fetcher performs upstream suggest requests. A single Fetcher is shared by
// all inbound requests so connections are pooled.
type Fetcher struct {
	config    FetchConfig
	client    *httpclient.Client
	detectors []Detector
	logger    *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.WebSearchURL == "" {
		cfg.WebSearchURL = DefaultWebSearchURL
	}
	if cfg.VideoSearchURL == "" {
		cfg.VideoSearchURL = DefaultVideoSearchURL
	}
	cfg.WebSearchURL = strings.TrimRight(cfg.WebSearchURL, "/")
	cfg.VideoSearchURL = strings.TrimRight(cfg.VideoSearchURL, "/")
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.WebSearchDecode == DecodeRaw {
		cfg.WebSearchDecode = DecodeIgnore
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy is chosen per request and carried on the request context, so
	// one transport serves every request.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("upstream: setup transport: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: httpclient.New(httpclient.Config{
			Timeout:      cfg.Timeout,
			MaxRedirects: cfg.MaxRedirects,
			Transport:    transport,
		}),
		detectors: DefaultDetectors(),
		logger:    cfg.Logger,
	}, nil
}

// URL builds the provider request URL. The region only applies to WebSearch.
func (f *Fetcher) URL(p provider.Provider, query, region string) (string, error) {
	switch p {
	case provider.WebSearch:
		u := f.config.WebSearchURL + "/complete/search?output=toolbar&q=" + url.QueryEscape(query)
		if region != "" {
			u += "&gl=" + url.QueryEscape(region)
		}
		return u, nil
	case provider.VideoSearch:
		return f.config.VideoSearchURL + "/complete/search?client=firefox&ds=yt&q=" + url.QueryEscape(query), nil
	}
	return "", fmt.Errorf("upstream: %w: %v", provider.ErrUnsupported, p)
}

// Policy returns the decode policy applied to a provider's body.
func (f *Fetcher) Policy(p provider.Provider) DecodePolicy {
	switch p {
	case provider.WebSearch:
		return f.config.WebSearchDecode
	case provider.VideoSearch:
		return DecodeRaw
	}
	return DecodeRaw
}

func (f *Fetcher) userAgent() string {
	if f.config.RandomUA {
		return f.config.UAPool.Random()
	}
	return f.config.UAPool.Next()
}

// Fetch issues one GET to the provider and returns the decoded body. Any
// failure to obtain a 2xx response is a *TransportError. There are no retries.
func (f *Fetcher) Fetch(ctx context.Context, p provider.Provider, query, region string) (*RawResponse, error) {
	target, err := f.URL(p, query, region)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	fail := func(te *TransportError, outcome string, n int) error {
		metrics.RecordUpstream(p.Platform(), outcome, time.Since(start), n)
		f.logger.Warn("upstream request failed",
			"provider", p.Platform(), "url", target, "status", te.StatusCode, "blocked", te.Blocked, "error", te.Err)
		return te
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fail(&TransportError{Provider: p, URL: target, Err: err}, metrics.OutcomeTransport, 0)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "*/*")

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			ctx = context.WithValue(ctx, proxyKey, activeProxy)
		}
	}

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.Report(activeProxy, false)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		return nil, fail(&TransportError{Provider: p, URL: target, Err: err}, metrics.OutcomeTransport, 0)
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.Report(activeProxy, true)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fail(&TransportError{
			Provider:   p,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("read body: %w", err),
		}, metrics.OutcomeTransport, len(body))
	}
	if len(body) > maxBodyBytes {
		return nil, fail(&TransportError{
			Provider:   p,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxBodyBytes),
		}, metrics.OutcomeTransport, len(body))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{
			Provider:   p,
			URL:        target,
			StatusCode: resp.StatusCode,
			PageTitle:  pageTitle(resp.Header, body),
		}
		te.Blocked = detectBlock(&blockedResponse{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			FinalPath:  resp.Request.URL.Path,
			Body:       body,
		}, f.detectors)

		outcome := metrics.OutcomeTransport
		if te.Blocked != "" {
			outcome = metrics.OutcomeBlocked
		}
		return nil, fail(te, outcome, len(body))
	}

	text, err := f.Policy(p).Decode(body)
	if err != nil {
		return nil, fail(&TransportError{Provider: p, URL: target, StatusCode: resp.StatusCode, Err: err}, metrics.OutcomeTransport, len(body))
	}

	elapsed := time.Since(start)
	metrics.RecordUpstream(p.Platform(), metrics.OutcomeOK, elapsed, len(body))
	f.logger.Debug("upstream request complete",
		"provider", p.Platform(), "status", resp.StatusCode, "bytes", len(body), "duration", elapsed)

	return &RawResponse{
		Provider:   p,
		URL:        target,
		StatusCode: resp.StatusCode,
		Text:       text,
		Bytes:      len(body),
		Duration:   elapsed,
	}, nil
}
