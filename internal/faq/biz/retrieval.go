package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/singleflight"
)

// 检索存储默认值。
const (
	DefaultCollection           = "smarttask_docs"
	DefaultTopK                 = 3
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectBaseDelay   = time.Second

	// ContextSeparator 分隔上下文中的检索片段。
	ContextSeparator = "\n\n---\n\n"
)

// QueryResult 向量检索的原始结果，三个切片按相似度排序且长度一致。
type QueryResult struct {
	Documents []string
	Metadatas []map[string]any
	Distances []float32
}

// VectorBackend 检索存储依赖的向量数据库。
type VectorBackend interface {
	// Connect 建立连接并确保集合存在。
	Connect(ctx context.Context) error
	// Query 按文本语义检索 topK 个片段。
	Query(ctx context.Context, text string, topK int) (*QueryResult, error)
	// Upsert 写入片段，ids、documents、metadatas 一一对应。
	Upsert(ctx context.Context, ids, documents []string, metadatas []map[string]any) error
	// Delete 删除来源为 source 的全部片段。
	Delete(ctx context.Context, source string) error
	// Count 返回片段总数。
	Count(ctx context.Context) (int64, error)
	// Heartbeat 检查连接是否存活。
	Heartbeat(ctx context.Context) error
	// Close 释放连接。
	Close(ctx context.Context) error
}

// SearchResult 一条检索结果。
type SearchResult struct {
	Document string  `json:"document"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// ConnectionState 向量存储连接状态。
type ConnectionState struct {
	Available         bool      `json:"available"`
	LastError         string    `json:"last_error,omitempty"`
	LastErrorAt       time.Time `json:"last_error_at,omitempty"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
}

// RetrievalStats 检索存储统计。
type RetrievalStats struct {
	Collection    string `json:"collection"`
	DocumentCount int64  `json:"document_count"`
	Available     bool   `json:"available"`
	LastError     string `json:"last_error,omitempty"`
}

// RetrievalConfig 检索存储配置。
type RetrievalConfig struct {
	// Collection 集合名称。
	Collection string
	// TopK 默认返回的片段数量。
	TopK int
	// MaxReconnectAttempts 自动重连次数上限，用尽后只能由健康检查恢复。
	MaxReconnectAttempts int
	// BaseDelay 第一次重连前的等待时间，之后每次翻倍。
	BaseDelay time.Duration
}

// RetrievalStore 向量检索与连接健康管理。
//
// 检索路径永不失败，不可用时返回空结果；索引路径将不可用返回给调用方。
type RetrievalStore struct {
	backend VectorBackend
	chunker *Chunker
	config  *RetrievalConfig

	mu    sync.Mutex
	state ConnectionState

	// 并发调用方共享同一次重连
	reconnect singleflight.Group
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRetrievalStore 创建检索存储，初始状态为未连接。
func NewRetrievalStore(backend VectorBackend, chunker *Chunker, config *RetrievalConfig) *RetrievalStore {
	if config == nil {
		config = &RetrievalConfig{MaxReconnectAttempts: DefaultMaxReconnectAttempts}
	}
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultReconnectBaseDelay
	}
	return &RetrievalStore{
		backend: backend,
		chunker: chunker,
		config:  config,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect 首次连接。失败时记录错误，不消耗重连次数。
func (s *RetrievalStore) Connect(ctx context.Context) error {
	if err := s.backend.Connect(ctx); err != nil {
		s.markUnavailable(err)
		logger.Errorw("failed to connect to vector store",
			"collection", s.config.Collection,
			"error", err.Error(),
		)
		return fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}
	s.markConnected()
	logger.Infow("connected to vector store", "collection", s.config.Collection)
	return nil
}

// Close 关闭底层连接。
func (s *RetrievalStore) Close(ctx context.Context) error {
	s.mu.Lock()
	s.state.Available = false
	s.mu.Unlock()
	return s.backend.Close(ctx)
}

// Available 报告存储当前是否可用。
func (s *RetrievalStore) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Available
}

// State 返回连接状态的快照。
func (s *RetrievalStore) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Collection 返回集合名称。
func (s *RetrievalStore) Collection() string {
	return s.config.Collection
}

// EnsureConnection 在不可用时尝试重连。
// 并发调用方加入同一次重连；重连次数用尽后立即失败。
func (s *RetrievalStore) EnsureConnection(ctx context.Context) error {
	if s.Available() {
		return nil
	}
	return s.shared(ctx, s.tryReconnect)
}

// shared 在 reconnect 组内执行 fn，同一时刻每个存储最多一次连接尝试。
// fn 不随任何调用方取消；调用方取消时只停止等待，连接尝试照常完成。
func (s *RetrievalStore) shared(ctx context.Context, fn func(ctx context.Context) error) error {
	detached := context.WithoutCancel(ctx)
	ch := s.reconnect.DoChan("reconnect", func() (any, error) {
		return nil, fn(detached)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrRetrievalUnavailable, ctx.Err())
	}
}

func (s *RetrievalStore) tryReconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Available {
		s.mu.Unlock()
		return nil
	}
	attempts := s.state.ReconnectAttempts
	if attempts >= s.config.MaxReconnectAttempts {
		lastErr := s.state.LastError
		s.mu.Unlock()
		logger.Warnw("max vector store reconnect attempts reached", "attempts", attempts)
		return fmt.Errorf("%w: reconnect attempts exhausted (%d), last error: %s",
			ErrRetrievalUnavailable, attempts, lastErr)
	}
	delay := s.config.BaseDelay * time.Duration(1<<attempts)
	s.state.ReconnectAttempts++
	attempt := s.state.ReconnectAttempts
	s.mu.Unlock()

	logger.Infow("attempting vector store reconnect", "attempt", attempt, "delay", delay.String())

	if err := s.sleep(ctx, delay); err != nil {
		return fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}
	if err := s.backend.Connect(ctx); err != nil {
		s.markUnavailable(err)
		logger.Warnw("vector store reconnect failed", "attempt", attempt, "error", err.Error())
		return fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}

	s.markConnected()
	logger.Infow("vector store reconnect successful", "attempt", attempt)
	return nil
}

// ResetReconnectCounter 清零重连计数，允许重新自动重连。
func (s *RetrievalStore) ResetReconnectCounter() {
	s.mu.Lock()
	s.state.ReconnectAttempts = 0
	s.mu.Unlock()
	logger.Info("vector store reconnect counter reset")
}

func (s *RetrievalStore) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Available = true
	s.state.LastError = ""
	s.state.ReconnectAttempts = 0
}

func (s *RetrievalStore) markUnavailable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Available = false
	s.state.LastError = err.Error()
	s.state.LastErrorAt = time.Now()
}

// AddDocument 索引文档：删除同名文档的旧片段后写入新片段，返回片段数量。
// 任何后端错误都会将存储标记为不可用并返回 ErrRetrievalUnavailable。
func (s *RetrievalStore) AddDocument(ctx context.Context, name, content string) (int, error) {
	if err := s.EnsureConnection(ctx); err != nil {
		return 0, err
	}

	chunks := s.chunker.Split(content)
	if len(chunks) == 0 {
		logger.Warnw("no chunks created from document", "filename", name)
		return 0, nil
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i := range chunks {
		ids[i] = fmt.Sprintf("%s_%d", name, i)
		metadatas[i] = map[string]any{
			"source":      name,
			"chunk_index": int64(i),
		}
	}

	if err := s.backend.Delete(ctx, name); err != nil {
		s.markUnavailable(err)
		logger.Errorw("failed to delete existing chunks", "filename", name, "error", err.Error())
		return 0, fmt.Errorf("%w: delete chunks of %q: %w", ErrRetrievalUnavailable, name, err)
	}
	if err := s.backend.Upsert(ctx, ids, chunks, metadatas); err != nil {
		s.markUnavailable(err)
		logger.Errorw("failed to add document", "filename", name, "error", err.Error())
		return 0, fmt.Errorf("%w: add document %q: %w", ErrRetrievalUnavailable, name, err)
	}

	logger.Infow("added document to vector store", "filename", name, "chunks", len(chunks))
	return len(chunks), nil
}

// Search 语义检索，保持相似度排序。不可用或出错时返回空结果。
func (s *RetrievalStore) Search(ctx context.Context, query string, topK int) []SearchResult {
	if topK <= 0 {
		topK = s.config.TopK
	}

	if err := s.EnsureConnection(ctx); err != nil {
		logger.Warnw("vector store unavailable for search, returning empty results",
			"query", truncateRunes(query, 50),
			"error", err.Error(),
		)
		return nil
	}

	res, err := s.backend.Query(ctx, query, topK)
	if err != nil {
		s.markUnavailable(err)
		logger.Errorw("error searching vector store, returning empty results",
			"query", truncateRunes(query, 50),
			"error", err.Error(),
		)
		return nil
	}
	if res == nil || len(res.Documents) == 0 {
		logger.Debugw("no search results found", "query", truncateRunes(query, 50))
		return nil
	}

	results := make([]SearchResult, 0, len(res.Documents))
	for i, doc := range res.Documents {
		r := SearchResult{Text: doc}
		if i < len(res.Metadatas) {
			if source, ok := res.Metadatas[i]["source"].(string); ok {
				r.Document = source
			}
		}
		if i < len(res.Distances) {
			// 距离转换为相似度
			r.Score = 1 - float64(res.Distances[i])
		}
		results = append(results, r)
	}

	logger.Infow("search completed", "query", truncateRunes(query, 50), "results", len(results))
	return results
}

// GetContext 检索并格式化为生成所需的上下文。
func (s *RetrievalStore) GetContext(ctx context.Context, query string, topK int) string {
	return FormatContext(s.Search(ctx, query, topK))
}

// FormatContext 将检索结果格式化为 "[source: 文档]\n内容" 块，按排序以分隔符连接。
func FormatContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[source: %s]\n%s", r.Document, r.Text)
	}
	return strings.Join(parts, ContextSeparator)
}

// Stats 返回集合统计，存储不可达时返回零计数且 Available=false。
func (s *RetrievalStore) Stats(ctx context.Context) RetrievalStats {
	stats := RetrievalStats{Collection: s.config.Collection}

	if err := s.EnsureConnection(ctx); err != nil {
		stats.LastError = s.State().LastError
		return stats
	}

	count, err := s.backend.Count(ctx)
	if err != nil {
		s.markUnavailable(err)
		logger.Errorw("error getting collection stats", "error", err.Error())
		stats.LastError = err.Error()
		return stats
	}

	stats.DocumentCount = count
	stats.Available = true
	return stats
}

// HealthCheck 连接并探活。成功时标记可用并清零重连计数，
// 这是重连次数用尽后恢复自动重连的途径。
func (s *RetrievalStore) HealthCheck(ctx context.Context) bool {
	if !s.Available() {
		err := s.shared(ctx, func(ctx context.Context) error {
			if s.Available() {
				return nil
			}
			if err := s.backend.Connect(ctx); err != nil {
				s.markUnavailable(err)
				return err
			}
			return nil
		})
		if err != nil {
			logger.Errorw("vector store connection check failed", "error", err.Error())
			return false
		}
	}
	if err := s.backend.Heartbeat(ctx); err != nil {
		s.markUnavailable(err)
		logger.Errorw("vector store connection check failed", "error", err.Error())
		return false
	}
	s.markConnected()
	return true
}
