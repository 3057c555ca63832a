package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/logger"
)

// Standard response types for consistent API responses

// SuccessResponse represents a simple successful operation message
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// DataResponse represents a response with data payload
type DataResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

// Helper functions for responding

// respondJSON sends a JSON response with the given status code and payload
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Get a buffer from the pool to reduce allocations
	buf := getBuffer()
	defer putBuffer(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		// Headers are already sent; the most we can do is log.
		slog.Error("Failed to encode JSON response", "error", err)
		return
	}

	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("Failed to write response buffer", "error", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// User-facing error messages for service errors
// These messages are derived from domain errors and provide helpful guidance to users
const (
	// Generic messages
	ErrMsgGenericServerError   = "Something went wrong"
	ErrMsgUnknownError         = "Unknown error"
	ErrMsgTooManyRequestsError = "Provider is rate limiting requests. Please try again later."
	ErrMsgUnavailableError     = "Provider is temporarily unavailable. Please try again later."

	// Connection messages
	ErrMsgConnectionNotFoundError = "No connection found for this provider"
	ErrMsgUnknownProviderError    = "Unknown provider"
	ErrMsgAuthExchangeError       = "Authorization failed. Please restart the connect flow."
	ErrMsgReconnectRequiredError  = "Connection expired. Please reconnect the account."

	// Subscription messages
	ErrMsgSubscriptionNotFoundError = "Subscription not found"
	ErrMsgInvalidResourceError      = "The referenced resource does not exist or is inaccessible"
	ErrMsgUnsupportedError          = "Webhooks are not supported for this resource; polling will be used"
)

// mapServiceErrorToUserMessage maps domain errors to user-friendly HTTP responses.
// It converts internal service errors to appropriate HTTP status codes and
// structured reasons the presentation layer can render.
func mapServiceErrorToUserMessage(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, ErrMsgUnknownError
	}

	switch {
	case errors.Is(err, domain.ErrConnectionNotFound):
		return http.StatusNotFound, ErrMsgConnectionNotFoundError
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return http.StatusNotFound, ErrMsgSubscriptionNotFoundError
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound, ErrMsgUnknownProviderError
	case errors.Is(err, domain.ErrAuthExchangeFailed):
		return http.StatusBadRequest, ErrMsgAuthExchangeError
	case errors.Is(err, domain.ErrRefreshDenied):
		return http.StatusConflict, ErrMsgReconnectRequiredError
	case errors.Is(err, domain.ErrInvalidResource):
		return http.StatusUnprocessableEntity, ErrMsgInvalidResourceError
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, ErrMsgTooManyRequestsError
	case errors.Is(err, domain.ErrTransientFailure):
		return http.StatusBadGateway, ErrMsgUnavailableError
	default:
		return http.StatusInternalServerError, ErrMsgGenericServerError
	}
}

// respondServiceError logs the underlying error and writes the mapped
// user-facing response.
func respondServiceError(w http.ResponseWriter, r *http.Request, opName string, err error) {
	log := logger.FromContext(r.Context())
	status, message := mapServiceErrorToUserMessage(err)
	if status >= http.StatusInternalServerError {
		log.Error(opName+" failed", "error", err)
	} else {
		log.Warn(opName+" rejected", "status", status, "error", err)
	}
	respondError(w, status, message)
}
