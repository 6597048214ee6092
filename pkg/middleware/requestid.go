// Package middleware provides gin middleware shared by the support-desk services.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/supportdesk/pkg/utils/id"
)

// HeaderXRequestID is the canonical request ID header.
const HeaderXRequestID = "X-Request-ID"

// ContextKeyRequestID is the gin context key holding the request ID.
const ContextKeyRequestID = "request_id"

// RequestIDConfig defines the config for the RequestID middleware.
type RequestIDConfig struct {
	// Header is the header name to use for request ID.
	// Default: "X-Request-ID"
	Header string

	// Generator is the function to generate request IDs.
	// Default: UUID v4
	Generator func() string
}

// RequestID returns a middleware that adds a unique request ID to each request.
// An incoming X-Request-ID header is propagated unchanged.
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig returns a RequestID middleware with custom config.
func RequestIDWithConfig(config RequestIDConfig) gin.HandlerFunc {
	if config.Header == "" {
		config.Header = HeaderXRequestID
	}
	if config.Generator == nil {
		config.Generator = id.NewUUID
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(config.Header)
		if requestID == "" {
			requestID = config.Generator()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Writer.Header().Set(config.Header, requestID)

		c.Next()
	}
}

// GetRequestID returns the request ID from the gin context.
// Returns empty string if not found.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
