package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/intake"
	"github.com/locdb/locdb/internal/ranker"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

type errorBody struct {
	Message    string   `json:"message"`
	Candidates []string `json:"candidates,omitempty"`
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case resource.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, intake.ErrExists), errors.Is(err, intake.ErrNotImplemented):
		return http.StatusBadRequest
	case curator.IsAmbiguous(err):
		return http.StatusConflict
	case ranker.IsAllAdaptersFailed(err):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, intake.ErrNoMetadata):
		return http.StatusNotFound
	case errors.Is(err, intake.ErrNoCatalogue), errors.Is(err, ranker.ErrNoStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError writes err as a JSON message. Store failures are logged and
// reported without their details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorBody{Message: err.Error()}

	switch {
	case errors.Is(err, intake.ErrExists):
		body.Message = "The resource already exists."
	case code == http.StatusInternalServerError:
		s.log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		body.Message = "Internal error."
	}

	var ae *curator.AmbiguousMatchError
	if errors.As(err, &ae) {
		body.Candidates = ae.Candidates
	}
	writeJSON(w, code, body)
}

func writeJSONError(w http.ResponseWriter, errorMsg string, statusCode int) {
	writeJSON(w, statusCode, errorBody{Message: errorMsg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	if ct := strings.ToLower(r.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "application/json") {
		return fmt.Errorf("content type %q is not application/json", ct)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parsing request body: %w", err)
	}
	return nil
}
