package api

import (
	"encoding/json"
	"net/http"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotAuthenticated:     http.StatusUnauthorized,
	apperr.KindLoginFailed:          http.StatusUnauthorized,
	apperr.KindWrongRole:            http.StatusForbidden,
	apperr.KindInvalidInput:         http.StatusBadRequest,
	apperr.KindNotFound:             http.StatusNotFound,
	apperr.KindNoCaregiverAvailable: http.StatusConflict,
	apperr.KindInsufficientStock:    http.StatusConflict,
	apperr.KindConflict:             http.StatusConflict,
	apperr.KindStoreUnavailable:     http.StatusServiceUnavailable,
	apperr.KindRateLimited:          http.StatusTooManyRequests,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeAppError renders err by kind. The cause chain is logged, never sent.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		loggerFor(r).Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	}
	writeError(w, status, string(kind), apperr.Message(err))
}
