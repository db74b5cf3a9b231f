package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/canvas-auth/internal/domain"
	domainoauth "github.com/smallbiznis/canvas-auth/internal/domain/oauth"
	"github.com/smallbiznis/canvas-auth/internal/http/middleware"
	"github.com/smallbiznis/canvas-auth/internal/repository"
	oauthsvc "github.com/smallbiznis/canvas-auth/internal/service/oauth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeFlow implements oauthsvc.FlowService with programmable outcomes.
type fakeFlow struct {
	getTokenResult string
	getTokenErr    error
	beginURL       string
	beginErr       error
	beginCalls     int
	lastBegin      oauthsvc.BeginAuthorizationInput
	callbackURI    string
	callbackErr    error
	lastCallback   oauthsvc.HandleCallbackInput
}

func (f *fakeFlow) GetToken(context.Context, oauthsvc.TokenRequest) (string, error) {
	return f.getTokenResult, f.getTokenErr
}

func (f *fakeFlow) BeginAuthorization(_ context.Context, in oauthsvc.BeginAuthorizationInput) (string, error) {
	f.beginCalls++
	f.lastBegin = in
	return f.beginURL, f.beginErr
}

func (f *fakeFlow) HandleCallback(_ context.Context, in oauthsvc.HandleCallbackInput) (string, error) {
	f.lastCallback = in
	return f.callbackURI, f.callbackErr
}

func (f *fakeFlow) RefreshToken(context.Context, oauthsvc.TokenRequest) (domain.CanvasToken, error) {
	return domain.CanvasToken{}, nil
}

type trackingTokenRepo struct {
	mu          sync.Mutex
	deleteCalls []string
}

func (r *trackingTokenRepo) Find(context.Context, string) (domain.CanvasToken, error) {
	return domain.CanvasToken{}, repository.ErrTokenNotFound
}

func (r *trackingTokenRepo) Create(_ context.Context, token domain.CanvasToken) (domain.CanvasToken, error) {
	return token, nil
}

func (r *trackingTokenRepo) Save(context.Context, domain.CanvasToken) error { return nil }

func (r *trackingTokenRepo) Delete(_ context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls = append(r.deleteCalls, ownerID)
	return nil
}

type dispatcherHarness struct {
	flow   *fakeFlow
	tokens *trackingTokenRepo
	engine *gin.Engine
}

func newDispatcherHarness(t *testing.T, protected ProtectedHandler) *dispatcherHarness {
	t.Helper()
	flow := &fakeFlow{beginURL: "https://canvas.example.edu/login/oauth2/auth?client_id=x&state=s"}
	tokens := &trackingTokenRepo{}
	renderer := NewErrorRenderer("", zap.NewNop())
	dispatcher := NewDispatcher(flow, tokens, renderer, zap.NewNop())

	engine := gin.New()
	engine.Use(middleware.Identity("X-Remote-User"))
	engine.Use(middleware.Session("canvas_oauth_session"))
	engine.GET("/protected", dispatcher.Protect(protected))

	return &dispatcherHarness{flow: flow, tokens: tokens, engine: engine}
}

func (h *dispatcherHarness) request(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-Remote-User", "owner-1")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestDispatcher_MissingTokenStartsFlow(t *testing.T) {
	h := newDispatcherHarness(t, func(*gin.Context) error {
		return domainoauth.ErrMissingToken
	})

	rec := h.request(t, "/protected?tab=grades")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, h.flow.beginURL, rec.Header().Get("Location"))
	require.Equal(t, "/protected?tab=grades", h.flow.lastBegin.RequesterURI,
		"the full original path is the post-authorization return target")
	require.Contains(t, h.flow.lastBegin.RedirectURI, CallbackPath)
	require.Empty(t, h.tokens.deleteCalls)
}

func TestDispatcher_StaleTokenDiscardsThenStartsFlow(t *testing.T) {
	h := newDispatcherHarness(t, func(*gin.Context) error {
		return domainoauth.ErrStaleToken
	})

	rec := h.request(t, "/protected")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, []string{"owner-1"}, h.tokens.deleteCalls)
	require.Equal(t, 1, h.flow.beginCalls)
}

func TestDispatcher_InvalidStateRenders403(t *testing.T) {
	h := newDispatcherHarness(t, func(*gin.Context) error {
		return domainoauth.ErrInvalidState
	})

	rec := h.request(t, "/protected")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "state mismatch")
	require.Zero(t, h.flow.beginCalls)
}

func TestDispatcher_ExchangeErrorRenders403WithProviderBody(t *testing.T) {
	h := newDispatcherHarness(t, func(*gin.Context) error {
		return &domainoauth.ExchangeError{GrantType: "authorization_code", Status: 400, Body: "invalid_grant"}
	})

	rec := h.request(t, "/protected")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestDispatcher_UnknownErrorIs500(t *testing.T) {
	h := newDispatcherHarness(t, func(*gin.Context) error {
		return context.DeadlineExceeded
	})

	rec := h.request(t, "/protected")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDispatcher_SuccessPassesThrough(t *testing.T) {
	h := newDispatcherHarness(t, func(c *gin.Context) error {
		c.String(http.StatusOK, "ok")
		return nil
	})

	rec := h.request(t, "/protected")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.Zero(t, h.flow.beginCalls)
}

func TestCallbackURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://broker.example.com:8080/canvas/token", nil)
	require.Equal(t, "http://broker.example.com:8080/oauth/callback", CallbackURL(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	require.Equal(t, "https://broker.example.com:8080/oauth/callback", CallbackURL(req))
}

func TestIdentityRequired(t *testing.T) {
	h := newDispatcherHarness(t, func(c *gin.Context) error {
		c.Status(http.StatusOK)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
