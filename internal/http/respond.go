package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"carbontracker/internal/assist"
	"carbontracker/internal/auth"
	"carbontracker/internal/core"
	applog "carbontracker/internal/log"
	"carbontracker/internal/records"
	"carbontracker/internal/task"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// errorBody is the JSON shape of every API error. Retry tells the dashboard
// whether to offer an automatic retry.
type errorBody struct {
	Error string `json:"error"`
	Retry bool   `json:"retry"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, retry bool) {
	writeJSON(w, status, errorBody{Error: msg, Retry: retry})
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Too many requests, try again shortly", false)
}

// writeLoadError answers a failed read of the record store. Unavailable
// stores are retryable.
func (s *Server) writeLoadError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		auth.WriteUnauthorized(w)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		s.logger.ErrorContext(ctx, "Failed to load purchases",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeUpstream,
			applog.FieldError, err)
		writeError(w, http.StatusBadGateway, "Could not load your purchases", true)
	}
}

// writeStoreError maps a failed write to the record store.
func (s *Server) writeStoreError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var invalid validationError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		auth.WriteUnauthorized(w)
	case errors.As(err, &invalid), isInputError(err):
		writeError(w, http.StatusBadRequest, err.Error(), false)
	case errors.Is(err, records.ErrNotFound):
		writeError(w, http.StatusNotFound, "Purchase not found", false)
	case errors.Is(err, records.ErrReadOnly):
		writeError(w, http.StatusConflict, "This purchase is still being saved and cannot be changed yet", false)
	default:
		s.logger.ErrorContext(ctx, "Record store write failed",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeUpstream,
			applog.FieldError, err)
		writeError(w, http.StatusBadGateway, "Could not save your change", records.Unavailable(err))
	}
}

// writeAssistError maps assistant failures. The user re-triggers manually, so
// retry is always false.
func (s *Server) writeAssistError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, task.ErrInFlight):
		writeError(w, http.StatusConflict, "A request is already running", false)
	case errors.Is(err, assist.ErrEmptyDescription):
		writeError(w, http.StatusBadRequest, "Describe the purchase first", false)
	case errors.Is(err, assist.ErrNothingToSummarize):
		writeError(w, http.StatusUnprocessableEntity, "Log some purchases to get tips", false)
	case errors.Is(err, context.Canceled):
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.WarnContext(ctx, "Assistant call timed out",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeUpstream)
		writeError(w, http.StatusGatewayTimeout, "The assistant took too long, please try again", false)
	default:
		s.logger.ErrorContext(ctx, "Assistant call failed",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeUpstream,
			applog.FieldError, err)
		msg := "The assistant is unavailable, please try again"
		if errors.Is(err, assist.ErrMalformedRemoteResult) || errors.Is(err, assist.ErrEmptyRemoteResult) {
			msg = "The assistant returned an unusable answer, please try again"
		}
		writeError(w, http.StatusBadGateway, msg, false)
	}
}

type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func isInputError(err error) bool {
	for _, target := range []error{
		core.ErrEmptyProductName, core.ErrInvalidWeight, core.ErrInvalidDistance,
		core.ErrInvalidDeliveryMode, core.ErrInvalidCategory,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeJSON reads one JSON object from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return validationError{"expected an application/json body"}
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return validationError{"request body too large"}
		case errors.Is(err, io.EOF):
			return validationError{"empty request body"}
		default:
			return validationError{"invalid JSON body: " + err.Error()}
		}
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}
