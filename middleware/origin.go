package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects cross-origin requests unless the Origin header matches
// one of the allowed patterns. An empty allowlist permits everything,
// which suits same-origin deployments behind a reverse proxy. Browsers
// send Origin on websocket upgrades, so this guards the /chat endpoint
// too.
func Origin(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || len(allowed) == 0 {
			c.Next()
			return
		}
		for _, pat := range allowed {
			if pat == "*" || strings.EqualFold(pat, origin) {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Next()
				return
			}
		}
		c.AbortWithStatus(http.StatusForbidden)
	}
}
