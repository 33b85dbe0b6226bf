// Package requestid assigns every HTTP request an identifier, echoes it in
// the X-Request-ID response header and makes it available to handlers,
// loggers and the response envelope.
package requestid

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-faq/pkg/utils/id"
)

const (
	// Header is the header name carrying the request ID.
	Header = "X-Request-ID"
	// ContextKey is the gin context key holding the request ID.
	ContextKey = "request_id"

	maxLen = 128
)

type ctxKey struct{}

// New returns a middleware that reuses a well-formed incoming X-Request-ID
// or generates a ULID.
func New() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(Header)
		if !valid(rid) {
			rid = id.NewULID()
		}

		c.Set(ContextKey, rid)
		c.Header(Header, rid)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), rid))

		c.Next()
	}
}

// FromGin returns the request ID stored by New, or "".
func FromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ContextKey)
}

// FromContext returns the request ID carried by ctx, or "".
func FromContext(ctx context.Context) string {
	if rid, ok := ctx.Value(ctxKey{}).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID stores the request ID in ctx.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, rid)
}

// valid 只接受可打印 ASCII，防止日志注入
func valid(rid string) bool {
	if rid == "" || len(rid) > maxLen {
		return false
	}
	for i := 0; i < len(rid); i++ {
		if rid[i] < 0x21 || rid[i] > 0x7e {
			return false
		}
	}
	return true
}
