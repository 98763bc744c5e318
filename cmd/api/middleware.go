package api

import (
	"time"

	"codentor-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id and logs one line when it ends.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		entry := logger.WithContext(c.Request.Context()).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   status,
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		})
		if userID := c.GetString("userID"); userID != "" {
			entry = entry.WithField("user_id", userID)
		}

		switch {
		case status >= 500:
			entry.Error("[HTTP] Request failed")
		case status >= 400:
			entry.Warn("[HTTP] Request rejected")
		default:
			entry.Debug("[HTTP] Request handled")
		}
	}
}
