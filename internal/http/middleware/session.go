package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionContextKey = "sessionContext"

// Session ensures every request carries a browser-session identifier,
// minting a cookie when none exists. The session ID keys the transient
// flow state that survives the authorization redirect round trip.
func Session(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cookieName)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				Secure:   c.Request.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(sessionContextKey, sessionID)
		c.Next()
	}
}

// GetSessionID extracts the session identifier from gin.
func GetSessionID(c *gin.Context) (string, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return "", false
	}
	sessionID, ok := value.(string)
	return sessionID, ok && sessionID != ""
}
