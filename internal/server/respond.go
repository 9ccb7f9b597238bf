package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	ipscope "github.com/eugener/ipscope/internal"
)

// maxRequestBody caps JSON request bodies (batch of 1M short keys fits).
const maxRequestBody = 16 << 20

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(status int, msg string) apiError {
	var e apiError
	e.Error.Message = msg
	switch {
	case status == http.StatusTooManyRequests:
		e.Error.Type = "quota_exceeded"
	case status >= 500:
		e.Error.Type = "server_error"
	default:
		e.Error.Type = "invalid_request_error"
	}
	return e
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ipscope.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ipscope.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ipscope.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ipscope.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ipscope.ErrUnauthorized), errors.Is(err, ipscope.ErrUpstream):
		// Our own credentials were rejected or the remote API failed.
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the full error and returns a sanitized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status >= 500 {
		slog.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", ipscope.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse(status, msg))
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// avoids the []string{v} alloc that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON limits body size, decodes JSON into v, and writes a 400 on error.
// Returns true if decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "invalid request body"))
		return false
	}
	return true
}
