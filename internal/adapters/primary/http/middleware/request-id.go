package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID  = "X-Request-ID"
	contextRequestID = "request_id"
)

// RequestID accepts a caller-supplied X-Request-ID or mints one, and makes
// it available to downstream handlers and the logging middleware through
// the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(contextRequestID, requestID)
		c.Header(headerRequestID, requestID)

		c.Next()
	}
}
