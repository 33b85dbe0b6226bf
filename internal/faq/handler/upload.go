package handler

import (
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/pkg/utils/errors"
	"github.com/kart-io/sentinel-faq/pkg/utils/response"
	"github.com/kart-io/sentinel-faq/pkg/utils/validator"
)

// MaxUploadBytes 上传文档的大小上限。
const MaxUploadBytes = 5 << 20

var (
	allowedFilename = regexp.MustCompile(`^[\w\-. ]+$`)
	unsafeFilename  = regexp.MustCompile(`[^\w\-.]`)
)

// UploadResponse 文档上传响应。
type UploadResponse struct {
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
}

// UploadDocument 上传并索引一个 .txt/.md 文档。
func (h *FAQHandler) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, errors.ErrFAQInvalidRequest.WithMessage("file is required"))
		return
	}

	if fh.Filename == "" {
		response.Fail(c, errors.ErrFAQMissingFilename)
		return
	}
	if !validator.HasDocumentExtension(fh.Filename) {
		response.Fail(c, errors.ErrFAQFileType)
		return
	}
	filename := SanitizeFilename(fh.Filename)
	if filename == "" {
		response.Fail(c, errors.ErrFAQMissingFilename)
		return
	}

	logger.Infow("uploading document", "filename", filename)

	if fh.Size > MaxUploadBytes {
		response.Fail(c, errors.ErrFAQFileTooLarge.WithMessagef("File too large. Maximum size is %d MB", MaxUploadBytes>>20))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Fail(c, errors.ErrFAQInvalidRequest.WithCause(err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		response.Fail(c, errors.ErrFAQInvalidRequest.WithCause(err))
		return
	}
	switch {
	case len(content) > MaxUploadBytes:
		response.Fail(c, errors.ErrFAQFileTooLarge.WithMessagef("File too large. Maximum size is %d MB", MaxUploadBytes>>20))
		return
	case len(content) == 0:
		response.Fail(c, errors.ErrFAQEmptyFile)
		return
	case !utf8.Valid(content):
		response.Fail(c, errors.ErrFAQFileEncoding)
		return
	}

	chunks, err := h.service.Ingest(c.Request.Context(), filename, string(content))
	if err != nil {
		logger.Errorw("failed to add document", "filename", filename, "error", err.Error())
		response.Fail(c, errors.ErrFAQIngestionFailed.WithCause(err))
		return
	}

	response.OKWithMessage(c, "Document uploaded successfully", UploadResponse{
		Filename:      filename,
		ChunksCreated: chunks,
	})
}

// SanitizeFilename 去除路径部分；文件名含非法字符时将主名中的非法字符替换为 "_"，保留扩展名。
// 结果为空或仅为 "."、".." 时返回空字符串。
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	if allowedFilename.MatchString(name) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return unsafeFilename.ReplaceAllString(stem, "_") + ext
}
