// Package handler 提供 FAQ 服务的 HTTP 处理器。
package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/internal/faq/biz"
	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/utils/errors"
	"github.com/kart-io/sentinel-faq/pkg/utils/response"
	"github.com/kart-io/sentinel-faq/pkg/utils/validator"
)

// Service 处理器依赖的问答服务，由 *biz.FAQService 实现。
type Service interface {
	Ask(ctx context.Context, question string) (*biz.AnswerPackage, error)
	Ingest(ctx context.Context, filename, content string) (int, error)
	History(ctx context.Context, limit int) ([]*biz.QueryRecord, error)
	Stats(ctx context.Context) *biz.ServiceStats
	Health(ctx context.Context) *biz.HealthReport
	ClearCache(ctx context.Context) int64
	Providers() []llm.ProviderDescriptor
	SelectProvider(name string) error
}

var _ Service = (*biz.FAQService)(nil)

// FAQHandler FAQ HTTP 处理器。
type FAQHandler struct {
	service Service
}

// NewFAQHandler 创建 FAQ 处理器。
func NewFAQHandler(service Service) *FAQHandler {
	return &FAQHandler{service: service}
}

// AskRequest 提问请求。
type AskRequest struct {
	Question string `json:"question" binding:"required,notblank,max=1000"`
}

// HistoryQuery 历史查询参数。
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// SelectProviderRequest 切换供应商请求。
type SelectProviderRequest struct {
	Provider string `json:"provider" binding:"required,notblank"`
}

// ClearCacheResponse 清空缓存响应。
type ClearCacheResponse struct {
	Deleted int64 `json:"deleted"`
}

// ProvidersResponse 供应商列表响应。
type ProvidersResponse struct {
	Active    string                   `json:"active"`
	Providers []llm.ProviderDescriptor `json:"providers"`
}

// Health 返回依赖服务的健康状态。
func (h *FAQHandler) Health(c *gin.Context) {
	response.OK(c, h.service.Health(c.Request.Context()))
}

// Ask 回答问题。
func (h *FAQHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}

	pkg, err := h.service.Ask(c.Request.Context(), req.Question)
	if err != nil {
		// 不向客户端暴露后端细节
		response.Fail(c, errors.ErrFAQGenerationFailed.WithCause(err))
		return
	}
	response.OK(c, pkg)
}

// History 返回最近的问答记录。
func (h *FAQHandler) History(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		failValidation(c, err)
		return
	}

	records, err := h.service.History(c.Request.Context(), q.Limit)
	if err != nil {
		logger.Warnw("failed to load query history", "error", err.Error())
		response.Fail(c, errors.ErrFAQHistoryUnavailable.WithCause(err))
		return
	}
	response.OK(c, records)
}

// Stats 返回服务统计。
func (h *FAQHandler) Stats(c *gin.Context) {
	response.OK(c, h.service.Stats(c.Request.Context()))
}

// ClearCache 清空答案缓存。
func (h *FAQHandler) ClearCache(c *gin.Context) {
	deleted := h.service.ClearCache(c.Request.Context())
	response.OK(c, ClearCacheResponse{Deleted: deleted})
}

// Providers 列出生成供应商。
func (h *FAQHandler) Providers(c *gin.Context) {
	response.OK(c, providersResponse(h.service.Providers()))
}

// SelectProvider 切换当前生成供应商。
func (h *FAQHandler) SelectProvider(c *gin.Context) {
	var req SelectProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}

	if err := h.service.SelectProvider(req.Provider); err != nil {
		if stderrors.Is(err, biz.ErrConfiguration) {
			response.Fail(c, errors.ErrFAQUnknownProvider.WithCause(err))
			return
		}
		response.FailWithError(c, err)
		return
	}
	response.OK(c, providersResponse(h.service.Providers()))
}

func providersResponse(descs []llm.ProviderDescriptor) ProvidersResponse {
	resp := ProvidersResponse{Providers: descs}
	for _, d := range descs {
		if d.Active {
			resp.Active = d.Name
		}
	}
	return resp
}

func failValidation(c *gin.Context, err error) {
	msg := validator.Global().Translate(err, validator.LangEN)
	response.Fail(c, errors.ErrFAQInvalidRequest.WithMessage(msg))
}
