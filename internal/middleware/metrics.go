package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nadacare/bip-api/internal/service"
)

// observation endpoints would otherwise dominate the histograms
var unobservedPaths = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics records per-route request counts and latency. Routes are labelled
// by their gin template (e.g. /sessions/:id) so path parameters never blow up
// label cardinality.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if _, skip := unobservedPaths[route]; skip {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
