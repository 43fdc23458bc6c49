package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/FranksOps/keyvo/internal/provider"
	"github.com/FranksOps/keyvo/internal/suggest"
	"github.com/FranksOps/keyvo/internal/upstream"
)

const invalidPlatformDetail = "Invalid platform. Valid choices are 'google' and 'youtube'"

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Keyvo API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	text := params.Get("q")
	if text == "" {
		s.writeError(w, r, suggest.ErrEmptyQuery)
		return
	}

	p, err := provider.Parse(params.Get("platform"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	suggestions, err := s.suggester.Suggest(r.Context(), suggest.Query{
		Text:     text,
		Region:   params.Get("gl"),
		Provider: p,
	})
	if err != nil {
		if r.Context().Err() != nil {
			s.logger.Debug("client went away before upstream answered", "request_id", RequestID(r.Context()))
			return
		}
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, suggestions)
}

// errorStatus maps the error taxonomy onto an HTTP status and caller-facing
// detail message.
func errorStatus(err error) (int, string) {
	var (
		ve *suggest.ValidationError
		te *upstream.TransportError
		pe *suggest.ParseError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, fmt.Sprintf("Query parameter '%s' %s", ve.Param, ve.Reason)
	case errors.Is(err, provider.ErrUnsupported):
		return http.StatusBadRequest, invalidPlatformDetail
	case errors.As(err, &te):
		return http.StatusServiceUnavailable, fmt.Sprintf("Error fetching data from %s API: %v", te.Provider, te)
	case errors.As(err, &pe):
		return http.StatusInternalServerError, fmt.Sprintf("Error parsing %s response: %v", pe.Format, pe)
	}
	return http.StatusInternalServerError, "Internal server error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("keyword lookup failed",
			"status", status, "error", err, "request_id", RequestID(r.Context()))
	}
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
