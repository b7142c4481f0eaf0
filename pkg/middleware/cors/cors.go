package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedHeaders  = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowedMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	preflightMaxAge = "600"
)

// New returns CORS middleware restricted to the configured origins. With no
// origins configured every origin is allowed, which is only acceptable for
// local development.
func New(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[normalizeOrigin(o)] = struct{}{}
	}

	return func(c *gin.Context) {
		writeCORSHeaders(c, allowed)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func writeCORSHeaders(c *gin.Context, allowed map[string]struct{}) {
	h := c.Writer.Header()
	h.Set("Vary", "Origin")
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Headers", allowedHeaders)
	h.Set("Access-Control-Allow-Methods", allowedMethods)
	h.Set("Access-Control-Max-Age", preflightMaxAge)

	origin := c.GetHeader("Origin")
	switch {
	case origin == "" && len(allowed) == 0:
		h.Set("Access-Control-Allow-Origin", "*")
	case origin == "":
	case len(allowed) == 0:
		h.Set("Access-Control-Allow-Origin", origin)
	default:
		if _, ok := allowed[normalizeOrigin(origin)]; ok {
			h.Set("Access-Control-Allow-Origin", origin)
		}
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
