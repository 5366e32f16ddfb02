package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out of the API.
const RequestIDHeader = "X-Request-ID"

// GinMiddleware attaches a request-scoped logger to the request context and
// logs one record per request.
func GinMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := logger.With(FieldRequestID, requestID)
		c.Request = c.Request.WithContext(IntoContext(c.Request.Context(), reqLogger))

		c.Next()

		fields := NewFields().
			WithHTTPRequest(c.Request.Method, c.FullPath(), c.ClientIP()).
			WithHTTPResponse(c.Writer.Status(), time.Since(start).Milliseconds())
		if len(c.Errors) > 0 {
			fields[FieldError] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= 500:
			reqLogger.ErrorContext(c.Request.Context(), "Request failed", fields.ToSlice()...)
		case c.Writer.Status() >= 400:
			reqLogger.WarnContext(c.Request.Context(), "Request rejected", fields.ToSlice()...)
		default:
			reqLogger.DebugContext(c.Request.Context(), "Request completed", fields.ToSlice()...)
		}
	}
}
