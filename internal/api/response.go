package api

import (
	"encoding/json"
	"net/http"

	"turnstile/internal/entitlement"
)

const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUserBlocked         = "USER_BLOCKED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeTokenUsed           = "TOKEN_USED"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func conflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, "An internal error occurred")
}

// writeDecision maps an engine decision onto the HTTP surface. Recoverable
// outcomes travel as 200 with the decision body so the presentation layer
// can branch on outcome; terminal denials get their own status codes.
func writeDecision(w http.ResponseWriter, d *entitlement.Decision) {
	switch d.Outcome {
	case entitlement.OutcomeDenied:
		writeError(w, http.StatusForbidden, ErrCodeUserBlocked, "Account is banned")
	case entitlement.OutcomeNotFound:
		notFound(w, "Not found")
	case entitlement.OutcomeExpired:
		writeError(w, http.StatusGone, ErrCodeTokenExpired, "Verification token has expired")
	case entitlement.OutcomeAlreadyUsed:
		writeError(w, http.StatusConflict, ErrCodeTokenUsed, "Verification token was already used")
	case entitlement.OutcomeServiceUnavailable:
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "External service unavailable, try again")
	default:
		writeJSON(w, http.StatusOK, d)
	}
}
