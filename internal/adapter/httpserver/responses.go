// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the clip upload, feedback job and chatbot endpoints used by the
// mobile app and the agency dashboard. Handlers only translate between HTTP
// and the usecase services; every business rule lives in internal/usecase.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/castmate/castmate-ai/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// errorMappings is ordered: the first sentinel matched by errors.Is wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
	{domain.ErrContentBlocked, http.StatusUnprocessableEntity, "CONTENT_BLOCKED"},
	{domain.ErrMalformedEnvelope, http.StatusBadGateway, "MALFORMED_ENVELOPE"},
	{domain.ErrResponseIncomplete, http.StatusBadGateway, "RESPONSE_INCOMPLETE"},
	{domain.ErrResponseFormat, http.StatusBadGateway, "RESPONSE_FORMAT"},
	{domain.ErrUpstreamRejected, http.StatusBadGateway, "UPSTREAM_REJECTED"},
	{domain.ErrUpstreamTimeout, http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"},
	{domain.ErrUpstreamRateLimit, http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMIT"},
	{domain.ErrTransport, http.StatusServiceUnavailable, "TRANSPORT"},
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			writeJSON(w, m.status, errorEnvelope{Error: apiError{Code: m.code, Message: err.Error(), Details: details}})
			return
		}
	}
	// unmapped errors may carry driver or network internals
	LoggerFrom(r).Error("unhandled request error", "error", err, "path", r.URL.Path)
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: apiError{Code: "INTERNAL", Message: "internal error", Details: details}})
}

// writeStatusError writes an error envelope with an explicit status, for
// transport-level rejections (413, 415, 406) that have no domain sentinel.
func writeStatusError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message, Details: details}})
}
