package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per handled request. Server faults log at
// error level, client errors at info.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"uri", c.Request.URL.Path,
			"status", status,
		}
		if deviceID := c.GetString(DeviceIDKey); deviceID != "" {
			attrs = append(attrs, "device", deviceID)
		}
		switch {
		case status >= 500:
			slog.Error("handled", attrs...)
		default:
			slog.Info("handled", attrs...)
		}
	}
}
