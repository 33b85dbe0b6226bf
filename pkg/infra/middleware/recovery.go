// Package middleware provides the gin middleware chain of the HTTP server.
package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/infra/middleware/requestid"
	"github.com/kart-io/sentinel-faq/pkg/utils/errors"
	"github.com/kart-io/sentinel-faq/pkg/utils/response"
)

// Recovery returns a middleware that converts panics into an ErrPanic
// envelope. The stack trace is logged but never sent to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", requestid.FromGin(c),
				)
				response.Fail(c, errors.ErrPanic)
			}
		}()
		c.Next()
	}
}
