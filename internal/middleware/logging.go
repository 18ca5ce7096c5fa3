package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"pettracker/internal/logger"
)

// RequestLogger logs one line per request; server errors go to the error log.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= 500:
			log.Error("%s %s -> %d (%v) %s", c.Request.Method, c.Request.URL.Path, status, latency, c.Errors.String())
		case status >= 400:
			log.Warning("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, latency)
		default:
			log.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, latency)
		}
	}
}
