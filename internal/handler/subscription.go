package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/resolver"
	"github.com/triggerline/triggerline/internal/subscription"
)

// CreateSubscriptionRequest is the body for subscription creation
type CreateSubscriptionRequest struct {
	ResourceRef string   `json:"resourceRef" validate:"required,max=255"`
	EventTypes  []string `json:"eventTypes" validate:"required,min=1,dive,required,max=100"`
}

// SubscriptionResponse is the presentation view of a subscription
type SubscriptionResponse struct {
	ID             string   `json:"id"`
	Provider       string   `json:"provider"`
	ResourceRef    string   `json:"resource_ref"`
	EventType      string   `json:"event_type"`
	Status         string   `json:"status"`
	FailureReason  string   `json:"failure_reason,omitempty"`
	ExternalID     *string  `json:"external_id,omitempty"`
	ExpiresAt      string   `json:"expires_at,omitempty"`
	EventsReceived int64    `json:"events_received"`
	LastEventAt    string   `json:"last_event_at,omitempty"`
}

func toSubscriptionResponse(sub domain.WebhookSubscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:             sub.ID,
		Provider:       sub.Provider,
		ResourceRef:    sub.ResourceRef,
		EventType:      sub.EventType,
		Status:         string(sub.Status),
		FailureReason:  sub.FailureReason,
		ExternalID:     sub.ExternalID,
		EventsReceived: sub.EventsReceived,
	}
	if sub.ExpiresAt != nil {
		resp.ExpiresAt = sub.ExpiresAt.UTC().Format(timeFormat)
	}
	if sub.LastEventAt != nil {
		resp.LastEventAt = sub.LastEventAt.UTC().Format(timeFormat)
	}
	return resp
}

// HandleCreateSubscription creates webhook subscriptions for a resource
// @Summary Create webhook subscriptions (idempotent)
// @Tags subscriptions
// @Accept json
// @Produce json
// @Success 201 {object} DataResponse
// @Router /connections/{provider}/subscriptions [post]
func HandleCreateSubscription(svc subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserID(w, r)
		if !ok {
			return
		}
		providerID := chi.URLParam(r, "provider")

		var req CreateSubscriptionRequest
		if err := DecodeAndValidateRequest(r, w, &req, "Create subscription"); err != nil {
			return
		}

		subs, err := svc.Create(r.Context(), userID, providerID, req.ResourceRef, req.EventTypes)
		if err != nil {
			respondServiceError(w, r, "Create subscription", err)
			return
		}

		out := make([]SubscriptionResponse, 0, len(subs))
		for _, sub := range subs {
			out = append(out, toSubscriptionResponse(sub))
		}
		respondJSON(w, http.StatusCreated, DataResponse{Data: out})
	}
}

// HandleListSubscriptions lists a connection's subscriptions
// @Summary List subscriptions
// @Tags subscriptions
// @Produce json
// @Success 200 {object} DataResponse
// @Router /connections/{provider}/subscriptions [get]
func HandleListSubscriptions(svc subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserID(w, r)
		if !ok {
			return
		}
		providerID := chi.URLParam(r, "provider")
		resourceRef := GetOptionalQueryParam(r, "resourceRef", "")

		subs, err := svc.List(r.Context(), userID, providerID, resourceRef)
		if err != nil {
			respondServiceError(w, r, "List subscriptions", err)
			return
		}

		out := make([]SubscriptionResponse, 0, len(subs))
		for _, sub := range subs {
			out = append(out, toSubscriptionResponse(sub))
		}
		respondJSON(w, http.StatusOK, DataResponse{Data: out})
	}
}

// HandleDeleteSubscription tombstones a subscription
// @Summary Delete a subscription
// @Tags subscriptions
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /subscriptions/{id} [delete]
func HandleDeleteSubscription(svc subscription.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := svc.Delete(r.Context(), id); err != nil {
			respondServiceError(w, r, "Delete subscription", err)
			return
		}

		respondJSON(w, http.StatusOK, SuccessResponse{Message: "deleted"})
	}
}

// ResolveResponse is the response for the resolve endpoint
type ResolveResponse struct {
	Mode string `json:"mode"`
}

// HandleResolve reports the effective delivery mode for a tuple
// @Summary Resolve delivery mode
// @Tags subscriptions
// @Produce json
// @Success 200 {object} ResolveResponse
// @Router /resolve [get]
func HandleResolve(svc resolver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := GetQueryParam(r, w, "provider")
		if !ok {
			return
		}
		resourceRef, ok := GetQueryParam(r, w, "resourceRef")
		if !ok {
			return
		}
		eventType, ok := GetQueryParam(r, w, "eventType")
		if !ok {
			return
		}

		mode, err := svc.Resolve(r.Context(), providerID, resourceRef, eventType)
		if err != nil {
			respondServiceError(w, r, "Resolve", err)
			return
		}

		respondJSON(w, http.StatusOK, ResolveResponse{Mode: string(mode)})
	}
}
