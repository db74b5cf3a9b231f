package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/smallbiznis/canvas-auth/internal/config"
	"github.com/smallbiznis/canvas-auth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/canvas-auth/internal/http/middleware"
	"github.com/smallbiznis/canvas-auth/internal/middleware"
)

// NewRouter wires gin routes and middleware.
func NewRouter(cfg config.Config, oauthHandler *handler.OAuthHandler, dispatcher *handler.Dispatcher, rateLimiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", oauthHandler.Health)

	authenticated := r.Group("/")
	authenticated.Use(httpmiddleware.Identity(cfg.IdentityHeader))
	authenticated.Use(httpmiddleware.Session(cfg.SessionCookie))
	{
		authenticated.GET(handler.CallbackPath, dispatcher.Protect(oauthHandler.Callback))

		canvas := authenticated.Group("/canvas")
		{
			canvas.GET("/token", dispatcher.Protect(oauthHandler.Token))
			canvas.POST("/domain", oauthHandler.SetCanvasDomain)
		}
	}

	return r
}
