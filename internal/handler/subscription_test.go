package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/triggerline/triggerline/internal/domain"
	"github.com/triggerline/triggerline/internal/resolver"
	"github.com/triggerline/triggerline/internal/subscription"
)

func withIDParam(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleCreateSubscription(t *testing.T) {
	t.Run("creates and returns subscriptions", func(t *testing.T) {
		externalID := "octocat/hello#77"
		svc := &subscription.MockService{}
		svc.On("Create", mock.Anything, "user-1", "ghapp", "octocat/hello", []string{"push", "release"}).
			Return([]domain.WebhookSubscription{
				{ID: "sub-1", Provider: "ghapp", ResourceRef: "octocat/hello", EventType: "push", Status: domain.SubscriptionActive, ExternalID: &externalID},
				{ID: "sub-2", Provider: "ghapp", ResourceRef: "octocat/hello", EventType: "release", Status: domain.SubscriptionFailed, FailureReason: "webhooks unsupported"},
			}, nil)

		body := `{"resourceRef":"octocat/hello","eventTypes":["push","release"]}`
		req := httptest.NewRequest("POST", "/connections/ghapp/subscriptions", strings.NewReader(body))
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleCreateSubscription(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"active"`)
		assert.Contains(t, w.Body.String(), `"status":"failed"`)
		assert.Contains(t, w.Body.String(), `"failure_reason":"webhooks unsupported"`)
		svc.AssertExpectations(t)
	})

	t.Run("rejects empty event types", func(t *testing.T) {
		svc := &subscription.MockService{}

		body := `{"resourceRef":"octocat/hello","eventTypes":[]}`
		req := httptest.NewRequest("POST", "/connections/ghapp/subscriptions", strings.NewReader(body))
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleCreateSubscription(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Create")
	})

	t.Run("no connection maps to 404", func(t *testing.T) {
		svc := &subscription.MockService{}
		svc.On("Create", mock.Anything, "user-1", "ghapp", "octocat/hello", []string{"push"}).
			Return(nil, domain.ErrConnectionNotFound)

		body := `{"resourceRef":"octocat/hello","eventTypes":["push"]}`
		req := httptest.NewRequest("POST", "/connections/ghapp/subscriptions", strings.NewReader(body))
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleCreateSubscription(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), ErrMsgConnectionNotFoundError)
	})

	t.Run("invalid resource maps to 422", func(t *testing.T) {
		svc := &subscription.MockService{}
		svc.On("Create", mock.Anything, "user-1", "ghapp", "octocat/missing", []string{"push"}).
			Return(nil, domain.ErrInvalidResource)

		body := `{"resourceRef":"octocat/missing","eventTypes":["push"]}`
		req := httptest.NewRequest("POST", "/connections/ghapp/subscriptions", strings.NewReader(body))
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleCreateSubscription(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestHandleListSubscriptions(t *testing.T) {
	t.Run("passes the optional resource filter", func(t *testing.T) {
		svc := &subscription.MockService{}
		svc.On("List", mock.Anything, "user-1", "calsync", "primary").
			Return([]domain.WebhookSubscription{
				{ID: "sub-1", Provider: "calsync", ResourceRef: "primary", EventType: "event_created", Status: domain.SubscriptionActive},
			}, nil)

		req := httptest.NewRequest("GET", "/connections/calsync/subscriptions?resourceRef=primary", nil)
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "calsync")
		w := httptest.NewRecorder()

		HandleListSubscriptions(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"resource_ref":"primary"`)
		svc.AssertExpectations(t)
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		svc := &subscription.MockService{}
		svc.On("List", mock.Anything, "user-1", "calsync", "").
			Return([]domain.WebhookSubscription{}, nil)

		req := httptest.NewRequest("GET", "/connections/calsync/subscriptions", nil)
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "calsync")
		w := httptest.NewRecorder()

		HandleListSubscriptions(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})
}

func TestHandleDeleteSubscription(t *testing.T) {
	t.Run("tombstones the row", func(t *testing.T) {
		svc := &subscription.MockService{}
		svc.On("Delete", mock.Anything, "sub-1").Return(nil)

		req := httptest.NewRequest("DELETE", "/subscriptions/sub-1", nil)
		req = withIDParam(req, "sub-1")
		w := httptest.NewRecorder()

		HandleDeleteSubscription(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown id maps to 404", func(t *testing.T) {
		svc := &subscription.MockService{}
		svc.On("Delete", mock.Anything, "nope").Return(domain.ErrSubscriptionNotFound)

		req := httptest.NewRequest("DELETE", "/subscriptions/nope", nil)
		req = withIDParam(req, "nope")
		w := httptest.NewRecorder()

		HandleDeleteSubscription(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleResolve(t *testing.T) {
	t.Run("reports the delivery mode", func(t *testing.T) {
		svc := &resolver.MockService{}
		svc.On("Resolve", mock.Anything, "ghapp", "octocat/hello", "push").
			Return(domain.DeliveryWebhook, nil)

		req := httptest.NewRequest("GET", "/resolve?provider=ghapp&resourceRef=octocat%2Fhello&eventType=push", nil)
		w := httptest.NewRecorder()

		HandleResolve(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"mode":"webhook"`)
		svc.AssertExpectations(t)
	})

	t.Run("missing query parameter", func(t *testing.T) {
		svc := &resolver.MockService{}

		req := httptest.NewRequest("GET", "/resolve?provider=ghapp", nil)
		w := httptest.NewRecorder()

		HandleResolve(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Resolve")
	})
}
