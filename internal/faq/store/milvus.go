package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/sentinel-faq/internal/faq/biz"
	"github.com/kart-io/sentinel-faq/pkg/component/milvus"
	"github.com/kart-io/sentinel-faq/pkg/llm"
	milvusopts "github.com/kart-io/sentinel-faq/pkg/options/milvus"
)

// 集合中的标量字段。
const (
	FieldSource     = "source"
	FieldChunkIndex = "chunk_index"
	FieldContent    = "content"
)

var outputFields = []string{FieldSource, FieldChunkIndex, FieldContent}

// errNotConnected 尚未建立 Milvus 连接。
var errNotConnected = errors.New("milvus backend not connected")

// MilvusConfig Milvus 向量后端配置。
type MilvusConfig struct {
	// Collection 集合名称。
	Collection string
	// Dimension 向量维度，需与 Embedding 模型一致。
	Dimension int
}

// MilvusBackend 基于 Milvus 的 biz.VectorBackend 实现。
// 文本向量由 Embedding 供应商生成，连接在 Connect 时建立，可重复调用以重连。
type MilvusBackend struct {
	opts     *milvusopts.Options
	config   *MilvusConfig
	embedder llm.EmbeddingProvider

	mu     sync.RWMutex
	client *milvus.Client
}

var _ biz.VectorBackend = (*MilvusBackend)(nil)

// NewMilvusBackend 创建 Milvus 向量后端，不会立即连接。
func NewMilvusBackend(opts *milvusopts.Options, config *MilvusConfig, embedder llm.EmbeddingProvider) *MilvusBackend {
	return &MilvusBackend{
		opts:     opts,
		config:   config,
		embedder: embedder,
	}
}

// Connect 建立连接并确保集合存在且已加载。已有连接会被替换。
func (b *MilvusBackend) Connect(ctx context.Context) error {
	client, err := milvus.New(ctx, b.opts)
	if err != nil {
		return err
	}

	schema := &milvus.CollectionSchema{
		Name:        b.config.Collection,
		Description: "FAQ knowledge base chunks",
		Dimension:   b.config.Dimension,
		MetaFields: []milvus.MetaField{
			{Name: FieldSource, DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: FieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: FieldContent, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	}
	if err := client.EnsureCollection(ctx, schema); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to prepare collection %s: %w", b.config.Collection, err)
	}

	b.mu.Lock()
	old := b.client
	b.client = client
	b.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Warnw("failed to close previous milvus connection", "error", err.Error())
		}
	}
	return nil
}

func (b *MilvusBackend) current() (*milvus.Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil, errNotConnected
	}
	return b.client, nil
}

// Query 生成查询向量并检索，距离为 1 - 余弦相似度。
func (b *MilvusBackend) Query(ctx context.Context, text string, topK int) (*biz.QueryResult, error) {
	client, err := b.current()
	if err != nil {
		return nil, err
	}

	vector, err := b.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := client.Search(ctx, b.config.Collection, vector, topK, outputFields)
	if err != nil {
		return nil, err
	}

	res := &biz.QueryResult{
		Documents: make([]string, 0, len(hits)),
		Metadatas: make([]map[string]any, 0, len(hits)),
		Distances: make([]float32, 0, len(hits)),
	}
	for _, hit := range hits {
		content, _ := hit.Metadata[FieldContent].(string)
		res.Documents = append(res.Documents, content)
		res.Metadatas = append(res.Metadatas, map[string]any{
			FieldSource:     hit.Metadata[FieldSource],
			FieldChunkIndex: hit.Metadata[FieldChunkIndex],
		})
		res.Distances = append(res.Distances, 1-hit.Score)
	}
	return res, nil
}

// Upsert 为片段生成向量并写入。
func (b *MilvusBackend) Upsert(ctx context.Context, ids, documents []string, metadatas []map[string]any) error {
	if len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("ids, documents and metadatas length mismatch: %d/%d/%d",
			len(ids), len(documents), len(metadatas))
	}
	client, err := b.current()
	if err != nil {
		return err
	}

	embeddings, err := b.embedder.Embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	data := &milvus.UpsertData{
		IDs:        ids,
		Embeddings: embeddings,
		Metadata: map[string][]any{
			FieldSource:     make([]any, len(ids)),
			FieldChunkIndex: make([]any, len(ids)),
			FieldContent:    make([]any, len(ids)),
		},
	}
	for i, meta := range metadatas {
		source, _ := meta[FieldSource].(string)
		data.Metadata[FieldSource][i] = source
		data.Metadata[FieldChunkIndex][i] = toInt64(meta[FieldChunkIndex])
		data.Metadata[FieldContent][i] = documents[i]
	}

	return client.Upsert(ctx, b.config.Collection, data)
}

// Delete 删除来源为 source 的全部片段。
func (b *MilvusBackend) Delete(ctx context.Context, source string) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	return client.DeleteByExpr(ctx, b.config.Collection, SourceExpr(source))
}

// Count 返回集合中的片段数量。
func (b *MilvusBackend) Count(ctx context.Context) (int64, error) {
	client, err := b.current()
	if err != nil {
		return 0, err
	}
	return client.Count(ctx, b.config.Collection)
}

// Heartbeat 探测连接是否存活。
func (b *MilvusBackend) Heartbeat(ctx context.Context) error {
	client, err := b.current()
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}

// Close 关闭连接。
func (b *MilvusBackend) Close(context.Context) error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// SourceExpr 构造按来源过滤的布尔表达式，转义反斜杠与双引号。
func SourceExpr(source string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(source)
	return fmt.Sprintf(`%s == "%s"`, FieldSource, escaped)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
