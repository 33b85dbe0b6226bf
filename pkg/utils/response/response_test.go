package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-faq/pkg/utils/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestResponse_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want int
	}{
		{"success", &Response{}, http.StatusOK},
		{"registered errno", &Response{Code: errors.ErrFAQFileType.Code}, http.StatusBadRequest},
		{"lookup by code", &Response{Code: errors.ErrRouteNotFound.Code}, http.StatusNotFound},
		{"category fallback", &Response{Code: errors.MakeCode(errors.ServiceFAQ, errors.CategoryNetwork, 999)}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.HTTPStatus())
		})
	}
}

func TestFail_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	Fail(c, errors.ErrFAQEmptyFile)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var got Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, errors.ErrFAQEmptyFile.Code, got.Code)
	assert.Equal(t, "文件内容为空", got.Message)
	assert.NotZero(t, got.Timestamp)
	assert.True(t, c.IsAborted())
}

func TestFailWithError_HidesPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	FailWithError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestOK_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	OK(c, map[string]int{"documents": 3})

	require.Equal(t, http.StatusOK, w.Code)
	var got Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Zero(t, got.Code)
	assert.Equal(t, "success", got.Message)
	assert.Equal(t, map[string]any{"documents": float64(3)}, got.Data)
}
