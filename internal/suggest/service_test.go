package suggest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"testing"

	"github.com/FranksOps/keyvo/internal/provider"
	"github.com/FranksOps/keyvo/internal/upstream"
)

type fakeFetcher struct {
	calls int
	gotP  provider.Provider
	gotQ  string
	gotGL string
	text  string
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, p provider.Provider, query, region string) (*upstream.RawResponse, error) {
	f.calls++
	f.gotP, f.gotQ, f.gotGL = p, query, region
	if f.err != nil {
		return nil, f.err
	}
	return &upstream.RawResponse{Provider: p, StatusCode: http.StatusOK, Text: f.text, Bytes: len(f.text)}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Suggest(t *testing.T) {
	f := &fakeFetcher{text: `window.google.ac.h(["lofi",["lofi hip hop","lofi girl"]])`}
	svc := NewService(f, quietLogger())

	got, err := svc.Suggest(context.Background(), Query{Text: "lofi", Region: "us", Provider: provider.VideoSearch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"lofi hip hop", "lofi girl"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
	if f.calls != 1 || f.gotP != provider.VideoSearch || f.gotQ != "lofi" || f.gotGL != "us" {
		t.Errorf("unexpected fetch: %+v", f)
	}
}

func TestService_ValidationSkipsUpstream(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  error
	}{
		{"empty text", Query{Provider: provider.WebSearch}, ErrEmptyQuery},
		{"empty text video", Query{Region: "de", Provider: provider.VideoSearch}, ErrEmptyQuery},
		{"zero provider", Query{Text: "go"}, provider.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{}
			_, err := NewService(f, quietLogger()).Suggest(context.Background(), tt.query)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if f.calls != 0 {
				t.Errorf("expected no upstream call, got %d", f.calls)
			}
		})
	}
}

func TestService_TransportErrorPassesThrough(t *testing.T) {
	te := &upstream.TransportError{Provider: provider.WebSearch, StatusCode: http.StatusServiceUnavailable}
	svc := NewService(&fakeFetcher{err: te}, quietLogger())

	got, err := svc.Suggest(context.Background(), Query{Text: "go", Provider: provider.WebSearch})
	if got != nil {
		t.Errorf("expected nil list, got %q", got)
	}
	var target *upstream.TransportError
	if !errors.As(err, &target) || target != te {
		t.Errorf("expected the transport error unchanged, got %v", err)
	}
}

func TestService_ParseError(t *testing.T) {
	svc := NewService(&fakeFetcher{text: `<toplevel><CompleteSuggestion>`}, quietLogger())

	got, err := svc.Suggest(context.Background(), Query{Text: "go", Provider: provider.WebSearch})
	if got != nil {
		t.Errorf("expected nil list, got %q", got)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestService_EmptyListIsSuccess(t *testing.T) {
	svc := NewService(&fakeFetcher{text: `["q"]`}, quietLogger())

	got, err := svc.Suggest(context.Background(), Query{Text: "q", Provider: provider.VideoSearch})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
}
