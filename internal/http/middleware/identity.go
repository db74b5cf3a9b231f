package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ownerContextKey = "ownerContext"

// Identity resolves the request's principal from the trusted identity
// header set by the upstream authenticating proxy. Requests without an
// identity never enter the OAuth flow.
func Identity(headerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := strings.TrimSpace(c.Request.Header.Get(headerName))
		if ownerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthenticated",
				"error_description": "Identity header missing.",
			})
			return
		}
		c.Set(ownerContextKey, ownerID)
		c.Next()
	}
}

// GetOwnerID extracts the resolved principal from gin.
func GetOwnerID(c *gin.Context) (string, bool) {
	value, ok := c.Get(ownerContextKey)
	if !ok {
		return "", false
	}
	ownerID, ok := value.(string)
	return ownerID, ok && ownerID != ""
}
