package biz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-faq/pkg/infra/tracing"
	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/utils/id"
	"github.com/kart-io/sentinel-faq/pkg/utils/validator"
)

// 服务默认值。
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100

	// excerptLength 来源摘录的最大字符数。
	excerptLength = 200
)

// 健康状态取值。
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// 健康检查中的服务名称，同时用作 service_up 指标的标签。
const (
	ServiceDatabase    = "database"
	ServiceRedis       = "redis"
	ServiceVectorStore = "vector_store"
)

// 检索结果状态，用作 rag_searches_total 指标的标签。
const (
	SearchStatusSuccess     = "success"
	SearchStatusUnavailable = "unavailable"
)

// QueryLogger 查询日志存储，追加写入已回答的问题。
type QueryLogger interface {
	Record(ctx context.Context, rec *QueryRecord) error
	Recent(ctx context.Context, limit int) ([]*QueryRecord, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// TaskSubmitter 提交后台任务，*pool.Pool 实现了该接口。
type TaskSubmitter interface {
	SubmitWithContext(ctx context.Context, task func()) error
}

// Metrics 业务指标收集器。
type Metrics interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordLLMCall(provider string, tokens int, elapsed time.Duration, err error)
	RecordSearch(status string)
	RecordDocumentUpload(success bool)
	SetDocumentsIndexed(count int64)
	SetServiceUp(service string, up bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordCacheHit() {}
func (nopMetrics) RecordCacheMiss() {}
func (nopMetrics) RecordLLMCall(string, int, time.Duration, error) {}
func (nopMetrics) RecordSearch(string) {}
func (nopMetrics) RecordDocumentUpload(bool) {}
func (nopMetrics) SetDocumentsIndexed(int64) {}
func (nopMetrics) SetServiceUp(string, bool) {}

// ServiceConfig 问答服务配置。
type ServiceConfig struct {
	// TopK 每个问题检索的片段数量。
	TopK int
	// CacheTTL 答案缓存过期时间，<= 0 时使用缓存自身的配置。
	CacheTTL time.Duration
	// QueryLogTimeout 单次写入查询日志的超时时间。
	QueryLogTimeout time.Duration
}

// ServiceStats 服务统计。
type ServiceStats struct {
	TotalQueries     int64  `json:"total_queries"`
	DocumentsIndexed int64  `json:"documents_indexed"`
	Collection       string `json:"collection"`
}

// HealthReport 健康检查结果。
type HealthReport struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// ServiceOption 配置 FAQService 的可选依赖。
type ServiceOption func(*FAQService)

// WithQueryLogger 设置查询日志存储。
func WithQueryLogger(l QueryLogger) ServiceOption {
	return func(s *FAQService) {
		s.queryLog = l
	}
}

// WithTaskSubmitter 设置查询日志写入使用的后台池。
func WithTaskSubmitter(t TaskSubmitter) ServiceOption {
	return func(s *FAQService) {
		s.submitter = t
	}
}

// WithMetrics 设置业务指标收集器。
func WithMetrics(m Metrics) ServiceOption {
	return func(s *FAQService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// FAQService 组合答案缓存、检索存储与答案生成器，提供问答流程。
type FAQService struct {
	cache     *AnswerCache
	retrieval *RetrievalStore
	generator *AnswerGenerator
	queryLog  QueryLogger
	submitter TaskSubmitter
	metrics   Metrics
	config    *ServiceConfig
}

// NewFAQService 创建问答服务。
func NewFAQService(
	cache *AnswerCache,
	retrieval *RetrievalStore,
	generator *AnswerGenerator,
	config *ServiceConfig,
	opts ...ServiceOption,
) *FAQService {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.QueryLogTimeout <= 0 {
		config.QueryLogTimeout = 5 * time.Second
	}

	s := &FAQService{
		cache:     cache,
		retrieval: retrieval,
		generator: generator,
		metrics:   nopMetrics{},
		config:    config,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask 回答问题。
//
// 缓存与检索的故障都会降级处理，只有生成失败会返回 ErrGenerationFailure。
func (s *FAQService) Ask(ctx context.Context, question string) (*AnswerPackage, error) {
	start := time.Now()
	question = strings.TrimSpace(question)

	ctx, span := tracing.StartSpan(ctx, "faq.Ask",
		attribute.Int("faq.question.length", utf8.RuneCountInString(question)),
	)
	defer span.End()

	logger.Infow("received question", "question", truncateRunes(question, 50))

	// 1. 查询缓存
	if cached, ok := s.cache.Get(ctx, question); ok {
		s.metrics.RecordCacheHit()
		cached.Cached = true
		cached.ResponseTimeMs = time.Since(start).Milliseconds()
		span.SetAttributes(attribute.Bool("faq.cached", true))
		return cached, nil
	}
	s.metrics.RecordCacheMiss()

	// 2. 检索上下文，来源与上下文取自同一次检索
	results := s.search(ctx, question)
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{Document: r.Document, Excerpt: excerpt(r.Text)})
	}

	// 3. 生成答案
	gen, err := s.generator.Generate(ctx, question, FormatContext(results))
	if err != nil {
		s.metrics.RecordLLMCall(s.generator.Registry().ActiveName(), 0, 0, err)
		tracing.RecordError(span, err)
		logger.Errorw("answer generation failed",
			"question", truncateRunes(question, 50),
			"error", err.Error(),
		)
		return nil, err
	}
	s.metrics.RecordLLMCall(gen.Provider, gen.TokensUsed, gen.Elapsed, nil)

	// 4. 组装结果并写入缓存
	pkg := &AnswerPackage{
		Answer:         gen.Answer,
		Sources:        sources,
		TokensUsed:     gen.TokensUsed,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Cached:         false,
	}
	span.SetAttributes(
		attribute.Bool("faq.cached", false),
		attribute.Int("faq.sources", len(sources)),
		attribute.Int("llm.tokens_used", gen.TokensUsed),
		attribute.String("llm.provider", gen.Provider),
	)
	s.cache.Set(ctx, question, pkg, s.config.CacheTTL)

	// 5. 异步写入查询日志
	s.recordQuery(ctx, question, pkg)

	return pkg, nil
}

func (s *FAQService) search(ctx context.Context, question string) []SearchResult {
	ctx, span := tracing.StartSpan(ctx, "faq.Search", attribute.Int("faq.top_k", s.config.TopK))
	defer span.End()

	results := s.retrieval.Search(ctx, question, s.config.TopK)
	status := SearchStatusSuccess
	if !s.retrieval.Available() {
		status = SearchStatusUnavailable
	}
	s.metrics.RecordSearch(status)
	span.SetAttributes(
		attribute.Int("faq.results", len(results)),
		attribute.String("faq.search.status", status),
	)
	return results
}

// excerpt 截取来源摘录，超过 200 个字符时追加 "..."。
func excerpt(text string) string {
	if utf8.RuneCountInString(text) > excerptLength {
		return truncateRunes(text, excerptLength) + "..."
	}
	return text
}

func (s *FAQService) recordQuery(ctx context.Context, question string, pkg *AnswerPackage) {
	if s.queryLog == nil {
		return
	}

	rec := &QueryRecord{
		ID:             id.NewUUID(),
		Question:       question,
		Answer:         pkg.Answer,
		TokensUsed:     pkg.TokensUsed,
		ResponseTimeMs: pkg.ResponseTimeMs,
		Sources:        pkg.Sources,
		CreatedAt:      time.Now().UTC(),
	}

	// 请求结束后仍需完成写入，脱离请求的取消信号
	logCtx := tracing.Detach(ctx)
	task := func() {
		ctx, cancel := context.WithTimeout(logCtx, s.config.QueryLogTimeout)
		defer cancel()
		if err := s.queryLog.Record(ctx, rec); err != nil {
			logger.Warnw("failed to save to history", "query_id", rec.ID, "error", err.Error())
			return
		}
		logger.Debugw("saved to history", "query_id", rec.ID)
	}

	if s.submitter == nil {
		task()
		return
	}
	if err := s.submitter.SubmitWithContext(logCtx, task); err != nil {
		logger.Warnw("failed to submit query log task", "query_id", rec.ID, "error", err.Error())
	}
}

// Ingest 索引一个文档并返回片段数量。
func (s *FAQService) Ingest(ctx context.Context, filename, content string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "faq.Ingest", attribute.String("faq.document", filename))
	defer span.End()

	chunks, err := s.retrieval.AddDocument(ctx, filename, content)
	s.metrics.RecordDocumentUpload(err == nil)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}

	span.SetAttributes(attribute.Int("faq.chunks", chunks))
	s.refreshDocumentsIndexed(ctx)
	return chunks, nil
}

func (s *FAQService) refreshDocumentsIndexed(ctx context.Context) int64 {
	stats := s.retrieval.Stats(ctx)
	if stats.Available {
		s.metrics.SetDocumentsIndexed(stats.DocumentCount)
	}
	return stats.DocumentCount
}

// LoadDirectory 索引目录下（不递归）的全部 .txt/.md 文件，返回成功索引的片段总数。
// 单个文件失败只记录日志并跳过。
func (s *FAQService) LoadDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnw("documents directory not found", "directory", dir)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read documents directory %s: %w", dir, err)
	}

	loaded, totalChunks := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !validator.HasDocumentExtension(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return totalChunks, err
		}

		path := filepath.Join(dir, entry.Name())
		chunks, err := s.IngestFile(ctx, path)
		if err != nil {
			logger.Errorw("error loading document", "filename", entry.Name(), "error", err.Error())
			continue
		}
		loaded++
		totalChunks += chunks
	}

	logger.Infow("loaded documents from directory",
		"directory", dir,
		"files", loaded,
		"total_chunks", totalChunks,
	)
	return totalChunks, nil
}

// IngestFile 读取并索引单个文件，文档名为文件的基本名称。
func (s *FAQService) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return 0, fmt.Errorf("%s is not valid UTF-8 text", path)
	}
	return s.Ingest(ctx, filepath.Base(path), string(data))
}

// History 返回最近的问答记录，按时间倒序。
func (s *FAQService) History(ctx context.Context, limit int) ([]*QueryRecord, error) {
	if s.queryLog == nil {
		return nil, ErrQueryLogUnavailable
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := s.queryLog.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryLogUnavailable, err)
	}
	return records, nil
}

// Stats 返回问答总数与已索引片段数，任何存储不可达时对应项为 0。
func (s *FAQService) Stats(ctx context.Context) *ServiceStats {
	stats := &ServiceStats{
		Collection:       s.retrieval.Collection(),
		DocumentsIndexed: s.refreshDocumentsIndexed(ctx),
	}
	if s.queryLog != nil {
		count, err := s.queryLog.Count(ctx)
		if err != nil {
			logger.Warnw("failed to count query history", "error", err.Error())
		} else {
			stats.TotalQueries = count
		}
	}
	return stats
}

// Health 检查数据库、缓存与向量存储，全部健康时为 healthy，否则为 degraded。
func (s *FAQService) Health(ctx context.Context) *HealthReport {
	checks := map[string]bool{
		ServiceDatabase:    s.queryLog != nil && s.pingQueryLog(ctx),
		ServiceRedis:       s.cache.Ping(ctx),
		ServiceVectorStore: s.retrieval.HealthCheck(ctx),
	}

	report := &HealthReport{
		Status:   StatusHealthy,
		Services: make(map[string]string, len(checks)),
	}
	for name, ok := range checks {
		s.metrics.SetServiceUp(name, ok)
		if ok {
			report.Services[name] = StatusHealthy
			continue
		}
		report.Services[name] = StatusUnhealthy
		report.Status = StatusDegraded
	}
	return report
}

func (s *FAQService) pingQueryLog(ctx context.Context) bool {
	if err := s.queryLog.Ping(ctx); err != nil {
		logger.Errorw("database health check failed", "error", err.Error())
		return false
	}
	return true
}

// ClearCache 清空答案缓存，返回删除的键数量。
func (s *FAQService) ClearCache(ctx context.Context) int64 {
	return s.cache.Clear(ctx)
}

// Providers 返回全部生成供应商的描述。
func (s *FAQService) Providers() []llm.ProviderDescriptor {
	return s.generator.Registry().Descriptors()
}

// SelectProvider 切换当前生成供应商，失败时保持原选择。
func (s *FAQService) SelectProvider(name string) error {
	registry := s.generator.Registry()
	previous := registry.ActiveName()
	if err := registry.Select(name); err != nil {
		logger.Warnw("failed to select generation provider", "provider", name, "error", err.Error())
		return err
	}
	logger.Infow("generation provider selected", "provider", name, "previous", previous)
	return nil
}

// RetrievalStore 返回检索存储。
func (s *FAQService) RetrievalStore() *RetrievalStore {
	return s.retrieval
}
