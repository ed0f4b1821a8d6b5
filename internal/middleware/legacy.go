package middleware

import (
	"github.com/gin-gonic/gin"
)

// Headers set on responses of the front-end compatibility routes.
const (
	LegacyRouteHeader     = "X-Legacy-Route"
	LegacySuccessorHeader = "X-Successor-Route"
)

const legacySuccessorContextKey = "legacy_successor"

// LegacyRoute marks a compatibility route and names the versioned endpoint that replaces it.
func LegacyRoute(successor string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(LegacyRouteHeader, "true")
		if successor != "" {
			c.Header(LegacySuccessorHeader, successor)
			c.Set(legacySuccessorContextKey, successor)
		}
		c.Next()
	}
}

// LegacySuccessor returns the successor route recorded by LegacyRoute.
func LegacySuccessor(c *gin.Context) (string, bool) {
	value, exists := c.Get(legacySuccessorContextKey)
	if !exists {
		return "", false
	}
	successor, ok := value.(string)
	return successor, ok
}
