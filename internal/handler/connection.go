package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/triggerline/triggerline/internal/connection"
	"github.com/triggerline/triggerline/internal/logger"
)

// timeFormat is the wire format for timestamps in API responses
const timeFormat = time.RFC3339

// HeaderUserID carries the acting user's id, set by the presentation
// layer which has already authenticated the end user.
const HeaderUserID = "X-User-ID"

// getUserID extracts the acting user id or writes a 400.
func getUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		logger.FromContext(r.Context()).Warn("Missing user id header")
		respondError(w, http.StatusBadRequest, "Missing "+HeaderUserID+" header")
		return "", false
	}
	return userID, true
}

// InitiateResponse is the response for the initiate endpoint
type InitiateResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	State            string `json:"state"`
}

// HandleInitiateConnection starts an OAuth flow for a provider
// @Summary Initiate provider authorization
// @Tags connections
// @Produce json
// @Success 200 {object} InitiateResponse
// @Router /connections/{provider}/initiate [post]
func HandleInitiateConnection(svc connection.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserID(w, r)
		if !ok {
			return
		}
		providerID := chi.URLParam(r, "provider")

		authURL, state, err := svc.Initiate(r.Context(), userID, providerID)
		if err != nil {
			respondServiceError(w, r, "Initiate connection", err)
			return
		}

		respondJSON(w, http.StatusOK, InitiateResponse{
			AuthorizationURL: authURL,
			State:            state,
		})
	}
}

// CallbackResponse is the response for the OAuth callback endpoint
type CallbackResponse struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	Created   bool   `json:"created"`
}

// HandleConnectionCallback completes an OAuth flow
// @Summary Complete provider authorization
// @Tags connections
// @Produce json
// @Success 200 {object} CallbackResponse
// @Router /connections/{provider}/callback [get]
func HandleConnectionCallback(svc connection.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "provider")

		code, ok := GetQueryParam(r, w, "code")
		if !ok {
			return
		}
		state, ok := GetQueryParam(r, w, "state")
		if !ok {
			return
		}

		_, created, err := svc.HandleCallback(r.Context(), providerID, state, code)
		if err != nil {
			respondServiceError(w, r, "Connection callback", err)
			return
		}

		respondJSON(w, http.StatusOK, CallbackResponse{
			Provider:  providerID,
			Connected: true,
			Created:   created,
		})
	}
}

// ConnectionStatusResponse is the presentation view of a connection
type ConnectionStatusResponse struct {
	Provider  string   `json:"provider"`
	Status    string   `json:"status"`
	Scopes    []string `json:"scopes,omitempty"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

// HandleConnectionStatus returns the stored connection state
// @Summary Connection status
// @Tags connections
// @Produce json
// @Success 200 {object} ConnectionStatusResponse
// @Router /connections/{provider} [get]
func HandleConnectionStatus(svc connection.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserID(w, r)
		if !ok {
			return
		}
		providerID := chi.URLParam(r, "provider")

		conn, err := svc.Status(r.Context(), userID, providerID)
		if err != nil {
			respondServiceError(w, r, "Connection status", err)
			return
		}

		resp := ConnectionStatusResponse{
			Provider: conn.Provider,
			Status:   string(conn.Status),
			Scopes:   conn.Scopes,
		}
		if !conn.ExpiresAt.IsZero() {
			resp.ExpiresAt = conn.ExpiresAt.UTC().Format(timeFormat)
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// HandleDisconnect removes a connection and its subscriptions
// @Summary Disconnect a provider
// @Tags connections
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /connections/{provider} [delete]
func HandleDisconnect(svc connection.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserID(w, r)
		if !ok {
			return
		}
		providerID := chi.URLParam(r, "provider")

		if err := svc.Disconnect(r.Context(), userID, providerID); err != nil {
			respondServiceError(w, r, "Disconnect", err)
			return
		}

		respondJSON(w, http.StatusOK, SuccessResponse{Message: "disconnected"})
	}
}
