package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainoauth "github.com/smallbiznis/canvas-auth/internal/domain/oauth"
	"github.com/smallbiznis/canvas-auth/internal/http/middleware"
	"github.com/smallbiznis/canvas-auth/internal/repository"
	oauthsvc "github.com/smallbiznis/canvas-auth/internal/service/oauth"
)

// ProtectedHandler is a request handler that may signal a flow-control
// outcome instead of writing a response itself.
type ProtectedHandler func(c *gin.Context) error

// Dispatcher translates flow-control signals returned by protected
// handlers into HTTP responses, so those handlers never deal with OAuth:
// a missing token starts the authorization flow, a stale token discards
// the stored record first, and everything else renders a 403.
type Dispatcher struct {
	flow     oauthsvc.FlowService
	tokens   repository.TokenRepository
	renderer *ErrorRenderer
	logger   *zap.Logger
}

// NewDispatcher wires the boundary between protected handlers and the flow.
func NewDispatcher(flow oauthsvc.FlowService, tokens repository.TokenRepository, renderer *ErrorRenderer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{flow: flow, tokens: tokens, renderer: renderer, logger: logger}
}

// Protect wraps a handler so its returned signal is dispatched exactly once
// at this boundary.
func (d *Dispatcher) Protect(h ProtectedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h(c)
		if err == nil {
			return
		}

		switch {
		case errors.Is(err, domainoauth.ErrMissingToken):
			d.beginAuthorization(c)
		case errors.Is(err, domainoauth.ErrStaleToken):
			d.discardToken(c)
			d.beginAuthorization(c)
		case errors.Is(err, domainoauth.ErrInvalidState):
			d.renderer.Render(c, err.Error())
		default:
			var exchangeErr *domainoauth.ExchangeError
			if errors.As(err, &exchangeErr) {
				d.renderer.Render(c, exchangeErr.Error())
				return
			}
			d.logger.Error("protected handler failure", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Internal server error.",
			})
		}
	}
}

// beginAuthorization starts the redirect dance using the current request's
// full path as the post-authorization return target.
func (d *Dispatcher) beginAuthorization(c *gin.Context) {
	sessionID, _ := middleware.GetSessionID(c)
	authorizeURL, err := d.flow.BeginAuthorization(c.Request.Context(), oauthsvc.BeginAuthorizationInput{
		SessionID:    sessionID,
		RequesterURI: c.Request.URL.RequestURI(),
		RedirectURI:  CallbackURL(c.Request),
	})
	if err != nil {
		d.renderer.Render(c, err.Error())
		return
	}
	c.Redirect(http.StatusFound, authorizeURL)
}

func (d *Dispatcher) discardToken(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		return
	}
	if err := d.tokens.Delete(c.Request.Context(), ownerID); err != nil {
		d.logger.Warn("failed to discard stale token",
			zap.String("owner_id", ownerID), zap.Error(err))
	}
}

// CallbackPath is the fixed route Canvas redirects back to.
const CallbackPath = "/oauth/callback"

// CallbackURL recomputes the absolute callback URI for this request. The
// token endpoint requires the same redirect_uri on every grant, so the
// computation must be identical at begin, exchange, and refresh time.
func CallbackURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, CallbackPath)
}
