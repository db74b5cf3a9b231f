package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/canvas-auth/internal/config"
	domainoauth "github.com/smallbiznis/canvas-auth/internal/domain/oauth"
	"github.com/smallbiznis/canvas-auth/internal/http/middleware"
)

type recordingSessionStore struct {
	domain string
	ttl    time.Duration
	err    error
}

func (s *recordingSessionStore) SaveFlowState(context.Context, string, domainoauth.FlowState, time.Duration) error {
	return nil
}

func (s *recordingSessionStore) GetFlowState(context.Context, string) (*domainoauth.FlowState, error) {
	return nil, nil
}

func (s *recordingSessionStore) DeleteFlowState(context.Context, string) error { return nil }

func (s *recordingSessionStore) SetCanvasDomain(_ context.Context, _ string, domain string, ttl time.Duration) error {
	s.domain = domain
	s.ttl = ttl
	return s.err
}

func (s *recordingSessionStore) GetCanvasDomain(context.Context, string) (string, error) {
	return s.domain, nil
}

type handlerHarness struct {
	flow     *fakeFlow
	sessions *recordingSessionStore
	engine   *gin.Engine
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	flow := &fakeFlow{}
	sessions := &recordingSessionStore{}
	tokens := &trackingTokenRepo{}
	renderer := NewErrorRenderer("", zap.NewNop())
	cfg := config.Config{SessionTTL: 10 * time.Minute}
	h := NewOAuthHandler(flow, sessions, renderer, cfg, zap.NewNop())
	dispatcher := NewDispatcher(flow, tokens, renderer, zap.NewNop())

	engine := gin.New()
	engine.Use(middleware.Identity("X-Remote-User"))
	engine.Use(middleware.Session("canvas_oauth_session"))
	engine.GET(CallbackPath, dispatcher.Protect(h.Callback))
	engine.GET("/canvas/token", dispatcher.Protect(h.Token))
	engine.POST("/canvas/domain", h.SetCanvasDomain)

	return &handlerHarness{flow: flow, sessions: sessions, engine: engine}
}

func (h *handlerHarness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-Remote-User", "owner-1")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestCallback_SuccessRedirectsToInitialURI(t *testing.T) {
	h := newHandlerHarness(t)
	h.flow.callbackURI = "/courses/42?tab=grades"

	rec := h.do(t, http.MethodGet, CallbackPath+"?code=abc&state=xyz", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/courses/42?tab=grades", rec.Header().Get("Location"))
	require.Equal(t, "abc", h.flow.lastCallback.Code)
	require.Equal(t, "xyz", h.flow.lastCallback.State)
	require.Equal(t, "owner-1", h.flow.lastCallback.OwnerID)
}

func TestCallback_ProviderErrorRendersWithoutExchange(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(t, http.MethodGet, CallbackPath+"?error=access_denied", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "access_denied")
	require.Empty(t, h.flow.lastCallback.Code, "exchange is never attempted")
}

func TestCallback_InvalidStateRenders403(t *testing.T) {
	h := newHandlerHarness(t)
	h.flow.callbackErr = domainoauth.ErrInvalidState

	rec := h.do(t, http.MethodGet, CallbackPath+"?code=abc&state=wrong", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "state mismatch")
}

func TestToken_ReturnsBearerToken(t *testing.T) {
	h := newHandlerHarness(t)
	h.flow.getTokenResult = "access-123"

	rec := h.do(t, http.MethodGet, "/canvas/token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"access_token":"access-123","token_type":"Bearer"}`, rec.Body.String())
}

func TestToken_MissingTokenRedirectsToCanvas(t *testing.T) {
	h := newHandlerHarness(t)
	h.flow.getTokenErr = domainoauth.ErrMissingToken
	h.flow.beginURL = "https://canvas.example.edu/login/oauth2/auth?state=s"

	rec := h.do(t, http.MethodGet, "/canvas/token", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, h.flow.beginURL, rec.Header().Get("Location"))
}

func TestSetCanvasDomain(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(t, http.MethodPost, "/canvas/domain", `{"domain":"other.instructure.com"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "other.instructure.com", h.sessions.domain)
	require.Equal(t, 10*time.Minute, h.sessions.ttl)
}

func TestSetCanvasDomain_RejectsEmpty(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(t, http.MethodPost, "/canvas/domain", `{"domain":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, h.sessions.domain)
}
