package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ably-labs/webcli/pkg/logger"
)

// RequestLogger logs one line per request through pkg/logger instead of
// gin's default writer.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := "%s %s -> %d (%s)"
		args := []any{c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Millisecond)}
		if status >= 500 {
			logger.Errorf(line, args...)
			return
		}
		logger.Infof(line, args...)
	}
}
