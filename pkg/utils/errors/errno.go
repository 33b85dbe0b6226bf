// Package errors 接口层的业务错误码。
//
// 错误码为 7 位十进制数 AABBCCC：AA 服务（00 通用，20 FAQ），BB 类别，CCC 序号。
// 领域包只返回普通的哨兵错误，handler 在写响应前把它们映射为 Errno，
// 因此 Errno 不会出现在 biz 层。
//
//	response.Fail(c, errors.ErrFAQFileTooLarge.WithMessagef("Maximum size is %d MB", n))
package errors

import (
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
)

// Errno 带双语消息的业务错误。预定义实例只读，派生一律通过 With* 复制。
type Errno struct {
	Code      int        `json:"code"`
	HTTP      int        `json:"-"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

func New(code, httpStatus int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	return &Errno{Code: code, HTTP: httpStatus, GRPCCode: grpcCode, MessageEN: messageEN, MessageZH: messageZH}
}

func (e *Errno) Error() string {
	msg := fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Errno) Unwrap() error { return e.cause }

// Cause 返回 WithCause 附加的底层错误。
func (e *Errno) Cause() error { return e.cause }

// Is 同一错误码视为同一错误，派生出的副本仍能与预定义实例匹配。
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t.Code == e.Code
}

func (e *Errno) derive(apply func(*Errno)) *Errno {
	cp := *e
	apply(&cp)
	return &cp
}

// WithCause 附加底层错误，只进入日志，不出现在响应消息中。
func (e *Errno) WithCause(cause error) *Errno {
	return e.derive(func(d *Errno) { d.cause = cause })
}

// WithMessage 替换英文消息。
func (e *Errno) WithMessage(msg string) *Errno {
	return e.derive(func(d *Errno) { d.MessageEN = msg })
}

func (e *Errno) WithMessagef(format string, args ...any) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message 按语言返回消息，缺少中文时回退英文。
func (e *Errno) Message(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "zh") && e.MessageZH != "" {
		return e.MessageZH
	}
	return e.MessageEN
}

func (e *Errno) HTTPStatus() int {
	if e.HTTP == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTP
}

func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode == codes.OK {
		return codes.Internal
	}
	return e.GRPCCode
}
