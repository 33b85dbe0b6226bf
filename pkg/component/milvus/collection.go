package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

const (
	// FieldID 主键字段（VarChar）
	FieldID = "id"
	// FieldEmbedding 向量字段
	FieldEmbedding = "embedding"

	idMaxLen = 512
)

// CollectionSchema defines the schema for a vector collection.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField defines a scalar field stored next to each vector.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // VARCHAR 类型的最大长度
}

// EnsureCollection creates the collection when missing, builds a COSINE
// AUTOINDEX on the vector field and loads it into memory.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		collSchema := entity.NewSchema().
			WithName(schema.Name).
			WithDescription(schema.Description).
			WithAutoID(false)

		// 调用方提供稳定的字符串 ID，便于按文档覆盖写入
		collSchema.WithField(
			entity.NewField().
				WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(idMaxLen).
				WithIsPrimaryKey(true),
		)
		collSchema.WithField(
			entity.NewField().
				WithName(FieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(schema.Dimension)),
		)
		for _, f := range schema.MetaFields {
			field := entity.NewField().
				WithName(f.Name).
				WithDataType(f.DataType)
			if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
				field.WithMaxLength(int64(f.MaxLen))
			}
			collSchema.WithField(field)
		}

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewAutoIndex(entity.COSINE)
		createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldEmbedding, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := createIdxTask.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

// UpsertData represents rows to be written into a collection. All slices
// are parallel and indexed by row.
type UpsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]any
}

// Upsert writes rows, replacing any existing row with the same primary key.
func (c *Client) Upsert(ctx context.Context, collectionName string, data *UpsertData) error {
	columns, err := buildColumns(data)
	if err != nil {
		return err
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}

	// 立即 flush 使新写入的数据对检索可见
	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

func buildColumns(data *UpsertData) ([]column.Column, error) {
	if data == nil || len(data.IDs) == 0 {
		return nil, fmt.Errorf("no rows to write")
	}
	if len(data.Embeddings) != len(data.IDs) {
		return nil, fmt.Errorf("ids and embeddings length mismatch: %d != %d", len(data.IDs), len(data.Embeddings))
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns,
		column.NewColumnVarChar(FieldID, data.IDs),
		column.NewColumnFloatVector(FieldEmbedding, len(data.Embeddings[0]), data.Embeddings),
	)

	for name, values := range data.Metadata {
		if len(values) != len(data.IDs) {
			return nil, fmt.Errorf("field %s has %d values, want %d", name, len(values), len(data.IDs))
		}
		switch v := values[0].(type) {
		case string:
			strVals := make([]string, len(values))
			for i, val := range values {
				s, ok := val.(string)
				if !ok {
					return nil, fmt.Errorf("mixed value types for field %s", name)
				}
				strVals[i] = s
			}
			columns = append(columns, column.NewColumnVarChar(name, strVals))
		case int64:
			intVals := make([]int64, len(values))
			for i, val := range values {
				n, ok := val.(int64)
				if !ok {
					return nil, fmt.Errorf("mixed value types for field %s", name)
				}
				intVals[i] = n
			}
			columns = append(columns, column.NewColumnInt64(name, intVals))
		default:
			return nil, fmt.Errorf("unsupported metadata type: %T for field %s", v, name)
		}
	}

	return columns, nil
}

// SearchResult represents a single search hit.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search performs a vector similarity search. With a COSINE index the score
// is the cosine similarity, higher is closer.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]SearchResult, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collectionName,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	hits := make([]SearchResult, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		hit := SearchResult{
			Score:    results[0].Scores[i],
			Metadata: make(map[string]any),
		}
		if results[0].IDs != nil {
			if id, err := results[0].IDs.GetAsString(i); err == nil {
				hit.ID = id
			}
		}
		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				hit.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				hit.Metadata[col.Name()] = col.Data()[i]
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// DeleteByExpr deletes every row matching the boolean expression.
func (c *Client) DeleteByExpr(ctx context.Context, collectionName, expr string) error {
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collectionName).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to delete by expr: %w", err)
	}
	return nil
}

// Count returns the number of live rows using a count(*) query, which
// unlike collection statistics excludes deleted rows.
func (c *Client) Count(ctx context.Context, collectionName string) (int64, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collectionName).
		WithOutputFields("count(*)").
		WithConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}

	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	return col.GetAsInt64(0)
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
