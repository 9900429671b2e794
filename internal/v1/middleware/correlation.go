// Package middleware contains Gin middleware used by both HTTP routers: the
// chatapi surface and the room server's router (health, metrics, and the
// websocket upgrade request). Frames on an upgraded socket do not pass
// through it.
package middleware

import (
	"github.com/nimbusroom/roomsrv/internal/v1/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderXCorrelationID is the header key carrying a request's correlation
// id, so a chatapi call that fans out to the vision or news upstream can
// be traced across log lines even without full tracing spans enabled.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID stamps every request with a correlation id, reusing one
// supplied by the caller if present, and stores it in gin's context so
// downstream handlers can attach it to log fields.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		// Set in header for response
		c.Header(HeaderXCorrelationID, correlationID)

		// Set in context for logger
		c.Set(string(logging.CorrelationIDKey), correlationID)

		// Pass to next handlers
		c.Next()
	}
}
