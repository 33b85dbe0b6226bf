// Package response 统一的 JSON 响应信封。
//
// 所有接口返回 {code, message, data, request_id, timestamp}，code 为 0 表示成功，
// 非 0 为 errors 包中登记的业务码，HTTP 状态由业务码推导。
package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-faq/pkg/infra/middleware/requestid"
	"github.com/kart-io/sentinel-faq/pkg/utils/errors"
)

// Response 响应信封。
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// HTTPStatus 根据业务码推导 HTTP 状态。
// 未登记的业务码按类别归并。
func (r *Response) HTTPStatus() int {
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OK 写入成功响应。
func OK(c *gin.Context, data any) {
	OKWithMessage(c, "success", data)
}

// OKWithMessage 写入带自定义消息的成功响应。
func OKWithMessage(c *gin.Context, message string, data any) {
	write(c, &Response{Message: message, Data: data})
}

// Fail 写入 e 对应的错误响应，消息语言取自 Accept-Language。
func Fail(c *gin.Context, e *errors.Errno) {
	if e == nil {
		OK(c, nil)
		return
	}
	write(c, &Response{Code: e.Code, Message: e.Message(language(c))})
}

// FailWithError 将 err 归并为 Errno 后写入，未知错误只暴露通用消息。
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}

func write(c *gin.Context, r *Response) {
	r.RequestID = requestid.FromGin(c)
	r.Timestamp = time.Now().UnixMilli()
	c.AbortWithStatusJSON(r.HTTPStatus(), r)
}

func language(c *gin.Context) string {
	if strings.HasPrefix(strings.ToLower(c.GetHeader("Accept-Language")), "zh") {
		return "zh"
	}
	return "en"
}
