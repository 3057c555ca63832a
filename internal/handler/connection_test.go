package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/triggerline/triggerline/internal/connection"
	"github.com/triggerline/triggerline/internal/domain"
)

// withProviderParam injects a chi route parameter the way the router would.
func withProviderParam(r *http.Request, provider string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", provider)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleInitiateConnection(t *testing.T) {
	t.Run("returns authorization url and state", func(t *testing.T) {
		svc := &connection.MockService{}
		svc.On("Initiate", mock.Anything, "user-1", "ghapp").
			Return("https://provider.example/authorize?state=abc", "abc", nil)

		req := httptest.NewRequest("POST", "/connections/ghapp/initiate", nil)
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleInitiateConnection(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authorizationUrl":"https://provider.example/authorize?state=abc"`)
		assert.Contains(t, w.Body.String(), `"state":"abc"`)
		svc.AssertExpectations(t)
	})

	t.Run("missing user header", func(t *testing.T) {
		svc := &connection.MockService{}

		req := httptest.NewRequest("POST", "/connections/ghapp/initiate", nil)
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleInitiateConnection(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Initiate")
	})

	t.Run("unknown provider", func(t *testing.T) {
		svc := &connection.MockService{}
		svc.On("Initiate", mock.Anything, "user-1", "nope").
			Return("", "", domain.ErrUnknownProvider)

		req := httptest.NewRequest("POST", "/connections/nope/initiate", nil)
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "nope")
		w := httptest.NewRecorder()

		HandleInitiateConnection(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), ErrMsgUnknownProviderError)
	})
}

func TestHandleConnectionCallback(t *testing.T) {
	t.Run("completes the flow", func(t *testing.T) {
		svc := &connection.MockService{}
		svc.On("HandleCallback", mock.Anything, "ghapp", "signed-state", "auth-code").
			Return(&domain.ServiceConnection{Provider: "ghapp"}, true, nil)

		req := httptest.NewRequest("GET", "/connections/ghapp/callback?code=auth-code&state=signed-state", nil)
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleConnectionCallback(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"connected":true`)
		assert.Contains(t, w.Body.String(), `"created":true`)
		svc.AssertExpectations(t)
	})

	t.Run("missing code", func(t *testing.T) {
		svc := &connection.MockService{}

		req := httptest.NewRequest("GET", "/connections/ghapp/callback?state=signed-state", nil)
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleConnectionCallback(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "HandleCallback")
	})

	t.Run("rejected state maps to 400", func(t *testing.T) {
		svc := &connection.MockService{}
		svc.On("HandleCallback", mock.Anything, "ghapp", "tampered", "auth-code").
			Return(nil, false, domain.ErrAuthExchangeFailed)

		req := httptest.NewRequest("GET", "/connections/ghapp/callback?code=auth-code&state=tampered", nil)
		req = withProviderParam(req, "ghapp")
		w := httptest.NewRecorder()

		HandleConnectionCallback(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ErrMsgAuthExchangeError)
	})
}

func TestHandleConnectionStatus(t *testing.T) {
	t.Run("reports stored connection", func(t *testing.T) {
		expiresAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc := &connection.MockService{}
		svc.On("Status", mock.Anything, "user-1", "calsync").
			Return(&domain.ServiceConnection{
				Provider:  "calsync",
				Status:    domain.ConnectionConnected,
				Scopes:    []string{"calendar.readonly"},
				ExpiresAt: expiresAt,
			}, nil)

		req := httptest.NewRequest("GET", "/connections/calsync", nil)
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "calsync")
		w := httptest.NewRecorder()

		HandleConnectionStatus(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"connected"`)
		assert.Contains(t, w.Body.String(), `"expires_at":"2026-03-01T12:00:00Z"`)
	})

	t.Run("no connection stored", func(t *testing.T) {
		svc := &connection.MockService{}
		svc.On("Status", mock.Anything, "user-1", "calsync").
			Return(nil, domain.ErrConnectionNotFound)

		req := httptest.NewRequest("GET", "/connections/calsync", nil)
		req.Header.Set(HeaderUserID, "user-1")
		req = withProviderParam(req, "calsync")
		w := httptest.NewRecorder()

		HandleConnectionStatus(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), ErrMsgConnectionNotFoundError)
	})
}

func TestHandleDisconnect(t *testing.T) {
	svc := &connection.MockService{}
	svc.On("Disconnect", mock.Anything, "user-1", "streamcast").Return(nil)

	req := httptest.NewRequest("DELETE", "/connections/streamcast", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req = withProviderParam(req, "streamcast")
	w := httptest.NewRecorder()

	HandleDisconnect(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"disconnected"`)
	svc.AssertExpectations(t)
}
