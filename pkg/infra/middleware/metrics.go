package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives one observation per completed HTTP request.
type RequestRecorder interface {
	ObserveRequest(method, endpoint, status string, elapsed time.Duration)
}

// Metrics returns a middleware that reports request counts and latency to
// recorder. The endpoint label is the matched route template so that path
// parameters do not explode label cardinality; unmatched routes are
// reported as "unmatched".
func Metrics(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		recorder.ObserveRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
