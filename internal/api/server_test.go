package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/FranksOps/keyvo/internal/metrics"
	"github.com/FranksOps/keyvo/internal/provider"
	"github.com/FranksOps/keyvo/internal/suggest"
	"github.com/FranksOps/keyvo/internal/upstream"
)

type fakeSuggester struct {
	calls int
	got   suggest.Query
	list  []string
	err   error
}

func (f *fakeSuggester) Suggest(ctx context.Context, q suggest.Query) ([]string, error) {
	f.calls++
	f.got = q
	return f.list, f.err
}

func newTestServer(s Suggester) *Server {
	return NewServer(Options{
		Addr:           ":0",
		AllowedOrigins: []string{"http://localhost:3000"},
	}, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body.Detail
}

func TestHandleRoot(t *testing.T) {
	rec := do(t, newTestServer(&fakeSuggester{}).Handler(), http.MethodGet, "/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["message"] != "Welcome to the Keyvo API" {
		t.Errorf("unexpected message %q", body["message"])
	}
}

func TestHandleHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeSuggester{}).Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("expected 200 ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandleKeywords_Success(t *testing.T) {
	tests := []struct {
		name   string
		target string
		list   []string
		want   suggest.Query
		body   string
	}{
		{
			name:   "default platform",
			target: "/api/keywords?q=golang&gl=de",
			list:   []string{"golang", "golang jobs"},
			want:   suggest.Query{Text: "golang", Region: "de", Provider: provider.WebSearch},
			body:   `["golang","golang jobs"]`,
		},
		{
			name:   "youtube",
			target: "/api/keywords?q=lofi&platform=youtube",
			list:   []string{"lofi hip hop"},
			want:   suggest.Query{Text: "lofi", Provider: provider.VideoSearch},
			body:   `["lofi hip hop"]`,
		},
		{
			name:   "empty list",
			target: "/api/keywords?q=zzzz&platform=google",
			list:   []string{},
			want:   suggest.Query{Text: "zzzz", Provider: provider.WebSearch},
			body:   `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSuggester{list: tt.list}
			rec := do(t, newTestServer(f).Handler(), http.MethodGet, tt.target, nil)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.body {
				t.Errorf("expected body %s, got %s", tt.body, got)
			}
			if !reflect.DeepEqual(f.got, tt.want) {
				t.Errorf("expected query %+v, got %+v", tt.want, f.got)
			}
		})
	}
}

func TestHandleKeywords_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantDetail string
		wantCalls  int
	}{
		{
			name:       "missing q",
			target:     "/api/keywords",
			wantStatus: http.StatusBadRequest,
			wantDetail: "Query parameter 'q' is required",
		},
		{
			name:       "empty q beats bad platform",
			target:     "/api/keywords?q=&platform=bogus&gl=us",
			wantStatus: http.StatusBadRequest,
			wantDetail: "Query parameter 'q' is required",
		},
		{
			name:       "bogus platform",
			target:     "/api/keywords?q=go&platform=bogus",
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid platform. Valid choices are 'google' and 'youtube'",
		},
		{
			name:       "transport error",
			target:     "/api/keywords?q=go",
			err:        &upstream.TransportError{Provider: provider.WebSearch, StatusCode: http.StatusBadGateway},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Error fetching data from Google API: Google request failed: status 502 Bad Gateway",
			wantCalls:  1,
		},
		{
			name:       "parse error",
			target:     "/api/keywords?q=go",
			err:        &suggest.ParseError{Provider: provider.WebSearch, Format: "XML", Err: errors.New("unexpected EOF")},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Error parsing XML response: unable to parse the upstream XML response: unexpected EOF",
			wantCalls:  1,
		},
		{
			name:       "unknown error",
			target:     "/api/keywords?q=go&platform=youtube",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal server error",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSuggester{err: tt.err}
			rec := do(t, newTestServer(f).Handler(), http.MethodGet, tt.target, nil)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := decodeDetail(t, rec); got != tt.wantDetail {
				t.Errorf("expected detail %q, got %q", tt.wantDetail, got)
			}
			if f.calls != tt.wantCalls {
				t.Errorf("expected %d suggester calls, got %d", tt.wantCalls, f.calls)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(&fakeSuggester{list: []string{}}).Handler()

	t.Run("allowed preflight", func(t *testing.T) {
		rec := do(t, h, http.MethodOptions, "/api/keywords", map[string]string{
			"Origin":                         "http://localhost:3000",
			"Access-Control-Request-Method":  http.MethodDelete,
			"Access-Control-Request-Headers": "X-Custom-Header",
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("expected allow-origin for localhost:3000, got %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("expected credentials allowed, got %q", got)
		}
		if rec.Code >= 300 {
			t.Errorf("expected 2xx preflight, got %d", rec.Code)
		}
	})

	t.Run("denied preflight", func(t *testing.T) {
		rec := do(t, h, http.MethodOptions, "/api/keywords", map[string]string{
			"Origin":                        "http://evil.example",
			"Access-Control-Request-Method": http.MethodGet,
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allow-origin for foreign origin, got %q", got)
		}
	})

	t.Run("simple request", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/keywords?q=go", map[string]string{
			"Origin": "http://localhost:3000",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("expected allow-origin on simple request, got %q", got)
		}
	})
}

func TestRequestID(t *testing.T) {
	h := newTestServer(&fakeSuggester{}).Handler()

	rec := do(t, h, http.MethodGet, "/", nil)
	if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("expected minted uuid request id, got %q", id)
	}

	rec = do(t, h, http.MethodGet, "/api/keywords", map[string]string{"X-Request-ID": "abc-123"})
	if id := rec.Header().Get("X-Request-ID"); id != "abc-123" {
		t.Errorf("expected propagated request id, got %q", id)
	}
}

func closedCount(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.HTTPRequestsTotal.WithLabelValues("/api/keywords", "499").Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestAccessLog_ClientClosed(t *testing.T) {
	var logs bytes.Buffer
	srv := NewServer(Options{}, &fakeSuggester{err: context.Canceled},
		slog.New(slog.NewTextHandler(&logs, nil)))

	before := closedCount(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/keywords?q=go", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Body.Len() != 0 {
		t.Errorf("expected nothing written for a gone client, got %q", rec.Body.String())
	}
	if !strings.Contains(logs.String(), "status=499") {
		t.Errorf("expected status=499 in access log, got %s", logs.String())
	}
	after := closedCount(t)
	if after != before+1 {
		t.Errorf("expected 499 counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestServerAddr(t *testing.T) {
	if got := newTestServer(&fakeSuggester{}).Addr(); got != ":0" {
		t.Errorf("expected :0, got %q", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(&fakeSuggester{}).Handler(), http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
