package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const clientIDKey = "clientID"

// ClientID reads the opaque X-Client-ID header into the gin context.
// Identity is self-assigned by the caller; there is no authentication,
// only ownership scoping of history features.
func ClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIDKey, strings.TrimSpace(c.GetHeader("X-Client-ID")))
		c.Next()
	}
}

// ClientFrom returns the request's client ID, possibly empty.
func ClientFrom(c *gin.Context) string {
	return c.GetString(clientIDKey)
}

// RequireClient rejects requests without an X-Client-ID header. Used on
// routes whose semantics need an owner.
func RequireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ClientFrom(c) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				gin.H{"error": "X-Client-ID header required"})
			return
		}
		c.Next()
	}
}
