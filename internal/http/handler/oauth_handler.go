package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/canvas-auth/internal/config"
	"github.com/smallbiznis/canvas-auth/internal/http/middleware"
	"github.com/smallbiznis/canvas-auth/internal/repository"
	oauthsvc "github.com/smallbiznis/canvas-auth/internal/service/oauth"
)

// OAuthHandler exposes the callback route and the token-broker endpoints.
type OAuthHandler struct {
	Flow     oauthsvc.FlowService
	Sessions repository.SessionStore
	Renderer *ErrorRenderer
	Config   config.Config
	Logger   *zap.Logger
}

// NewOAuthHandler creates the handler set.
func NewOAuthHandler(flow oauthsvc.FlowService, sessions repository.SessionStore, renderer *ErrorRenderer, cfg config.Config, logger *zap.Logger) *OAuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandler{Flow: flow, Sessions: sessions, Renderer: renderer, Config: cfg, Logger: logger}
}

// Callback receives the redirect back from Canvas. A provider-reported
// error parameter is data, not a failure: it is rendered directly without
// entering the flow.
func (h *OAuthHandler) Callback(c *gin.Context) error {
	if errParam := c.Query("error"); errParam != "" {
		h.Renderer.Render(c, errParam)
		return nil
	}

	sessionID, _ := middleware.GetSessionID(c)
	ownerID, _ := middleware.GetOwnerID(c)

	initialURI, err := h.Flow.HandleCallback(c.Request.Context(), oauthsvc.HandleCallbackInput{
		SessionID: sessionID,
		OwnerID:   ownerID,
		Code:      c.Query("code"),
		State:     c.Query("state"),
	})
	if err != nil {
		return err
	}

	c.Redirect(http.StatusFound, initialURI)
	return nil
}

// Token returns the current principal's Canvas access token, refreshing it
// first when it is inside the expiration buffer. A missing token propagates
// to the dispatcher, which starts the authorization flow.
func (h *OAuthHandler) Token(c *gin.Context) error {
	sessionID, _ := middleware.GetSessionID(c)
	ownerID, _ := middleware.GetOwnerID(c)

	accessToken, err := h.Flow.GetToken(c.Request.Context(), oauthsvc.TokenRequest{
		OwnerID:     ownerID,
		SessionID:   sessionID,
		RedirectURI: CallbackURL(c.Request),
	})
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "Bearer",
	})
	return nil
}

// SetCanvasDomain stores a per-session Canvas domain override, for
// deployments serving more than one Canvas instance.
func (h *OAuthHandler) SetCanvasDomain(c *gin.Context) {
	var req struct {
		Domain string `json:"domain" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Domain) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "domain is required.",
		})
		return
	}

	sessionID, _ := middleware.GetSessionID(c)
	if err := h.Sessions.SetCanvasDomain(c.Request.Context(), sessionID, strings.TrimSpace(req.Domain), h.Config.SessionTTL); err != nil {
		h.Logger.Error("failed to store canvas domain override", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Internal server error.",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Health is the liveness probe.
func (h *OAuthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
