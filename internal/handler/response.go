package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// timeFormat is the wire format for every timestamp in a response.
const timeFormat = "2006-01-02T15:04:05Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// writeDomainError maps an engine or service error to its HTTP status and
// error code.
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		WriteError(w, http.StatusNotFound, errorCode(err), domain.Message(err))
	case domain.KindInvalidState:
		WriteError(w, http.StatusConflict, errorCode(err), domain.Message(err))
	case domain.KindUnauthorized:
		WriteError(w, http.StatusUnauthorized, "unauthorized", domain.Message(err))
	case domain.KindTransientIO:
		w.Header().Set("Retry-After", "1")
		WriteError(w, http.StatusServiceUnavailable, "transient_io", domain.Message(err))
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// errorCode returns the sentinel's code for err.
func errorCode(err error) string {
	for _, sentinel := range []error{
		domain.ErrAuctionNotFound,
		domain.ErrTerritoryNotFound,
		domain.ErrWebhookNotFound,
		domain.ErrAuctionNotActive,
		domain.ErrAuctionAlreadyActive,
		domain.ErrIllegalTransition,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal_error"
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}
