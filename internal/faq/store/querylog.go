package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/sentinel-faq/internal/faq/biz"
	"github.com/kart-io/sentinel-faq/pkg/component/gormx"
)

// QueryHistory 问答记录表。
type QueryHistory struct {
	ID             string       `gorm:"primaryKey;size:36;comment:记录ID"`
	Question       string       `gorm:"type:text;not null;comment:问题"`
	Answer         string       `gorm:"type:text;not null;comment:答案"`
	TokensUsed     int          `gorm:"not null;default:0;comment:消耗 token 数"`
	ResponseTimeMs int64        `gorm:"not null;default:0;comment:响应耗时(毫秒)"`
	Sources        []biz.Source `gorm:"serializer:json;type:text;comment:引用来源"`
	CreatedAt      time.Time    `gorm:"index;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (QueryHistory) TableName() string {
	return "query_history"
}

// QueryLogRepo 基于 GORM 的 biz.QueryLogger 实现。
type QueryLogRepo struct {
	client *gormx.Client
}

var _ biz.QueryLogger = (*QueryLogRepo)(nil)

// NewQueryLogRepo 创建查询日志仓库。
func NewQueryLogRepo(client *gormx.Client) *QueryLogRepo {
	return &QueryLogRepo{client: client}
}

// AutoMigrate 创建或更新 query_history 表。
func (r *QueryLogRepo) AutoMigrate(ctx context.Context) error {
	if err := r.db(ctx).AutoMigrate(&QueryHistory{}); err != nil {
		return fmt.Errorf("failed to migrate query_history: %w", err)
	}
	return nil
}

func (r *QueryLogRepo) db(ctx context.Context) *gorm.DB {
	return r.client.DB().WithContext(ctx)
}

// Record 追加一条问答记录。
func (r *QueryLogRepo) Record(ctx context.Context, rec *biz.QueryRecord) error {
	row := &QueryHistory{
		ID:             rec.ID,
		Question:       rec.Question,
		Answer:         rec.Answer,
		TokensUsed:     rec.TokensUsed,
		ResponseTimeMs: rec.ResponseTimeMs,
		Sources:        rec.Sources,
		CreatedAt:      rec.CreatedAt,
	}
	if err := r.db(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert query history: %w", err)
	}
	return nil
}

// Recent 返回最近 limit 条记录，按创建时间倒序。
func (r *QueryLogRepo) Recent(ctx context.Context, limit int) ([]*biz.QueryRecord, error) {
	var rows []QueryHistory
	if err := r.db(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	records := make([]*biz.QueryRecord, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		sources := row.Sources
		if sources == nil {
			sources = []biz.Source{}
		}
		records = append(records, &biz.QueryRecord{
			ID:             row.ID,
			Question:       row.Question,
			Answer:         row.Answer,
			TokensUsed:     row.TokensUsed,
			ResponseTimeMs: row.ResponseTimeMs,
			Sources:        sources,
			CreatedAt:      row.CreatedAt,
		})
	}
	return records, nil
}

// Count 返回记录总数。
func (r *QueryLogRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db(ctx).Model(&QueryHistory{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count query history: %w", err)
	}
	return n, nil
}

// Ping 检查数据库是否可达。
func (r *QueryLogRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
