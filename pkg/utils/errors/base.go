package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 通用错误 (服务代码 00)
var (
	OK = &Errno{Code: 0, HTTP: http.StatusOK, GRPCCode: codes.OK, MessageEN: "success", MessageZH: "成功"}

	ErrBadRequest    = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrInvalidParam  = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrRequestTooBig = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusRequestEntityTooLarge, codes.InvalidArgument, "Request entity too large", "请求体过大"))

	ErrNotFound      = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Route not found", "路由不存在"))

	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrPanic    = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 0), http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))
	ErrTimeout            = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
)
