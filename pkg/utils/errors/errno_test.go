package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	code := MakeCode(ServiceFAQ, CategoryInternal, 1)
	assert.Equal(t, 2007001, code)

	service, category, seq := ParseCode(code)
	assert.Equal(t, ServiceFAQ, service)
	assert.Equal(t, CategoryInternal, category)
	assert.Equal(t, 1, seq)

	assert.True(t, IsServerError(code))
	assert.True(t, IsClientError(ErrFAQFileType.Code))
}

func TestErrno_WithCauseKeepsIdentity(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := ErrFAQIngestionFailed.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrFAQIngestionFailed))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Nil(t, ErrFAQIngestionFailed.Cause(), "原始错误不应被修改")
}

func TestErrno_Message(t *testing.T) {
	assert.Equal(t, "File is empty", ErrFAQEmptyFile.Message("en"))
	assert.Equal(t, "文件内容为空", ErrFAQEmptyFile.Message("zh-CN"))
	assert.Equal(t, codes.InvalidArgument, ErrFAQEmptyFile.GRPCStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("handler: %w", ErrFAQFileTooLarge)
	assert.Equal(t, ErrFAQFileTooLarge.Code, FromError(wrapped).Code)

	plain := FromError(stderrors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, ErrInternal.Code, GetCode(plain))
	assert.Equal(t, -1, GetCode(stderrors.New("x")))
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrFAQEmptyFile.Code, 400, codes.InvalidArgument, "dup", "重复"))
	})
}
