package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/event"
	"github.com/triggerline/triggerline/internal/logger"
	"github.com/triggerline/triggerline/internal/metrics"
	"github.com/triggerline/triggerline/internal/provider"
	"github.com/triggerline/triggerline/internal/subscription"
)

const (
	// maxWebhookBodyBytes caps inbound payload reads. Providers send small
	// JSON envelopes; anything larger is hostile or misrouted.
	maxWebhookBodyBytes = 1 << 20

	// dedupCacheSize bounds the seen-delivery-id cache. Redeliveries arrive
	// within minutes, so a bounded LRU is enough.
	dedupCacheSize = 4096
)

// WebhookHandler receives provider webhook deliveries, verifies their
// signatures and forwards accepted events onto the bus. Verification is
// the endpoint's only authentication: provider callbacks cannot carry
// API keys.
type WebhookHandler struct {
	providers     *provider.Registry
	subscriptions subscription.Service
	bus           event.Bus
	seen          *lru.Cache[string, struct{}]
}

// NewWebhookHandler creates a webhook handler with a bounded dedup cache.
func NewWebhookHandler(providers *provider.Registry, subscriptions subscription.Service, bus event.Bus) (*WebhookHandler, error) {
	seen, err := lru.New[string, struct{}](dedupCacheSize)
	if err != nil {
		return nil, err
	}
	return &WebhookHandler{
		providers:     providers,
		subscriptions: subscriptions,
		bus:           bus,
		seen:          seen,
	}, nil
}

// HandleDelivery processes an inbound provider webhook
// @Summary Receive a provider webhook delivery
// @Tags webhooks
// @Accept json
// @Success 204 "delivery accepted"
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) HandleDelivery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.FromContext(ctx)
		providerID := chi.URLParam(r, "provider")

		adapter, err := h.providers.Get(providerID)
		if err != nil {
			respondError(w, http.StatusNotFound, ErrMsgUnknownProviderError)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrMsgWebhookRejected)
			return
		}

		delivery, err := adapter.VerifyWebhook(r.Header, body)
		if err != nil {
			metrics.WebhookRejected.WithLabelValues(providerID).Inc()
			log.Warn("Webhook delivery rejected", "provider", providerID, "error", err)
			respondError(w, http.StatusUnauthorized, ErrMsgWebhookRejected)
			return
		}
		if delivery == nil {
			// Verified control message with no event to forward, e.g. a
			// push-channel sync handshake. Ack or the provider drops the
			// channel.
			w.WriteHeader(http.StatusOK)
			return
		}

		// Providers redeliver on slow acks. Redeliveries are acknowledged
		// but never forwarded twice.
		dedupKey := providerID + ":" + delivery.DeliveryID
		if delivery.DeliveryID != "" {
			if _, dup := h.seen.Get(dedupKey); dup {
				metrics.WebhookDuplicateDropped.WithLabelValues(providerID).Inc()
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		sub, err := h.subscriptions.FindByExternalID(ctx, providerID, delivery.ExternalID)
		switch {
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			// Unknown registration: acknowledge so the provider stops
			// retrying, but drop the event.
			log.Info("Webhook for unknown subscription dropped",
				"provider", providerID, "external_id", delivery.ExternalID)
			w.WriteHeader(http.StatusOK)
			return
		case err != nil:
			// Storage failure, not a missing row. A 5xx keeps the
			// provider's redelivery machinery retrying instead of
			// marking the event delivered and losing it.
			respondServiceError(w, r, "Webhook subscription lookup", err)
			return
		case sub.Status == domain.SubscriptionDeleted:
			log.Info("Webhook for deleted subscription dropped",
				"provider", providerID, "external_id", delivery.ExternalID)
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := h.subscriptions.RecordEvent(ctx, providerID, delivery.ExternalID, delivery.OccurredAt); err != nil {
			log.Error("Failed to record delivery", "subscription_id", sub.ID, "error", err)
		}

		ev := domain.ProviderEvent{
			Provider:    providerID,
			ResourceRef: sub.ResourceRef,
			EventType:   delivery.EventType,
			DeliveryID:  delivery.DeliveryID,
			OccurredAt:  delivery.OccurredAt,
			Payload:     delivery.Payload,
		}
		if err := h.bus.Publish(ctx, event.NewTriggerEvent(ev, domain.DeliveryWebhook)); err != nil {
			log.Error("Failed to publish webhook event", "subscription_id", sub.ID, "error", err)
			respondError(w, http.StatusInternalServerError, ErrMsgGenericServerError)
			return
		}

		if delivery.DeliveryID != "" {
			h.seen.Add(dedupKey, struct{}{})
		}
		metrics.WebhookDeliveries.WithLabelValues(providerID).Inc()
		w.WriteHeader(http.StatusNoContent)
	}
}
