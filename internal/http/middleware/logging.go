// README: Access log middleware.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"saferide/internal/logging"
)

func Logging(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			log.Warnf("%s %s -> %d: %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.Errors.String())
			return
		}
		log.Debugw("http request", fields)
	}
}
