package biz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-faq/pkg/llm"
)

// serviceFixture 组装带内存依赖的问答服务。
type serviceFixture struct {
	kv       *memoryKV
	backend  *fakeBackend
	provider *fakeProvider
	queryLog *memoryQueryLog
	metrics  *recordingMetrics
	sleeper  *immediateSleep
	service  *FAQService
}

func newServiceFixture(t *testing.T, opts ...ServiceOption) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		kv:       newMemoryKV(),
		backend:  &fakeBackend{},
		provider: newFakeProvider("anthropic"),
		queryLog: &memoryQueryLog{},
		metrics:  newRecordingMetrics(),
	}

	retrieval, sleeper := newTestRetrieval(t, f.backend)
	f.sleeper = sleeper
	require.NoError(t, retrieval.Connect(context.Background()))

	registry := llm.NewRegistry()
	registry.Register(f.provider)
	require.NoError(t, registry.Select("anthropic"))
	generator := NewAnswerGenerator(registry, &GeneratorConfig{Retry: fastRetry()})

	all := append([]ServiceOption{WithQueryLogger(f.queryLog), WithMetrics(f.metrics)}, opts...)
	f.service = NewFAQService(newTestCache(f.kv), retrieval, generator,
		&ServiceConfig{TopK: 3, CacheTTL: time.Hour}, all...)
	return f
}

func TestFAQService_AskThenCached(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.service.Ingest(ctx, "pricing.md", "Pro plan is $9/user/month. Free plan has 3 projects.")
	require.NoError(t, err)

	first, err := f.service.Ask(ctx, "What are the pricing plans?")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, f.provider.answer, first.Answer)
	assert.Equal(t, 42, first.TokensUsed)
	require.Len(t, first.Sources, 1)
	assert.Equal(t, "pricing.md", first.Sources[0].Document)
	assert.Contains(t, f.provider.lastMessage, "[source: pricing.md]")

	second, err := f.service.Ask(ctx, "  what are the PRICING plans?  ")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Sources, second.Sources)
	assert.Equal(t, first.TokensUsed, second.TokensUsed)
	assert.Equal(t, 1, f.provider.callCount(), "命中缓存不调用供应商")

	assert.Equal(t, 1, f.metrics.cacheHits)
	assert.Equal(t, 1, f.metrics.cacheMisses)
	assert.Equal(t, 1, f.queryLog.len(), "缓存命中不写查询日志")
}

func TestFAQService_AskWithCacheDown(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.kv.err = errors.New("redis: connection pool timeout")

	for i := 0; i < 2; i++ {
		pkg, err := f.service.Ask(ctx, "How do I reset my password?")
		require.NoError(t, err)
		assert.False(t, pkg.Cached)
	}
	assert.Equal(t, 2, f.provider.callCount())
	assert.Zero(t, f.metrics.cacheHits)
}

func TestFAQService_AskWithVectorStoreDown(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.backend.mu.Lock()
	f.backend.queryErr = errBackendDown
	f.backend.connectErr = errBackendDown
	f.backend.mu.Unlock()

	pkg, err := f.service.Ask(ctx, "Does SmartTask integrate with Slack?")
	require.NoError(t, err)
	assert.Empty(t, pkg.Sources)
	assert.NotNil(t, pkg.Sources, "无来源时序列化为空数组")
	assert.Contains(t, f.provider.lastMessage, NoContextMarker)
	assert.Equal(t, []string{SearchStatusUnavailable}, f.metrics.searches)
}

func TestFAQService_AskGenerationFailure(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.provider.failures = 100

	pkg, err := f.service.Ask(ctx, "q")
	require.Error(t, err)
	assert.Nil(t, pkg)
	assert.ErrorIs(t, err, ErrGenerationFailure)
	assert.Equal(t, 3, f.provider.callCount())
	assert.Equal(t, 1, f.metrics.llmErrors)

	_, hit := f.service.cache.Get(ctx, "q")
	assert.False(t, hit, "失败结果不写缓存")
	assert.Zero(t, f.queryLog.len())
}

func TestFAQService_SourceExcerptTruncated(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	long := strings.Repeat("a", 250)
	_, err := f.service.Ingest(ctx, "long.md", long)
	require.NoError(t, err)

	pkg, err := f.service.Ask(ctx, "long")
	require.NoError(t, err)
	require.Len(t, pkg.Sources, 1)
	assert.Equal(t, strings.Repeat("a", 200)+"...", pkg.Sources[0].Excerpt)
	assert.Contains(t, f.provider.lastMessage, long, "上下文使用完整片段")
}

// poolSubmitter 在独立 goroutine 中执行任务。
type poolSubmitter struct {
	wg        sync.WaitGroup
	submitted int
	err       error
}

func (p *poolSubmitter) SubmitWithContext(_ context.Context, task func()) error {
	if p.err != nil {
		return p.err
	}
	p.submitted++
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		task()
	}()
	return nil
}

func TestFAQService_QueryLogHandOff(t *testing.T) {
	submitter := &poolSubmitter{}
	f := newServiceFixture(t, WithTaskSubmitter(submitter))

	ctx, cancel := context.WithCancel(context.Background())
	pkg, err := f.service.Ask(ctx, "How do I export tasks?")
	require.NoError(t, err)
	cancel()

	submitter.wg.Wait()
	assert.Equal(t, 1, submitter.submitted)
	require.Equal(t, 1, f.queryLog.len(), "请求结束后仍完成写入")

	rec := f.queryLog.records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "How do I export tasks?", rec.Question)
	assert.Equal(t, pkg.Answer, rec.Answer)
	assert.Equal(t, pkg.TokensUsed, rec.TokensUsed)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestFAQService_QueryLogFailureDoesNotFailAsk(t *testing.T) {
	f := newServiceFixture(t, WithTaskSubmitter(&poolSubmitter{err: errors.New("pool closed")}))
	_, err := f.service.Ask(context.Background(), "q1")
	require.NoError(t, err)

	f2 := newServiceFixture(t)
	f2.queryLog.err = errors.New("database is locked")
	_, err = f2.service.Ask(context.Background(), "q2")
	require.NoError(t, err)
}

func TestFAQService_History(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	for _, q := range []string{"first", "second", "third"} {
		_, err := f.service.Ask(ctx, q)
		require.NoError(t, err)
	}

	records, err := f.service.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].Question)
	assert.Equal(t, "second", records[1].Question)

	records, err = f.service.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	f.queryLog.err = errors.New("connection reset")
	_, err = f.service.History(ctx, 10)
	assert.ErrorIs(t, err, ErrQueryLogUnavailable)
}

func TestFAQService_HistoryWithoutQueryLog(t *testing.T) {
	f := newServiceFixture(t, WithQueryLogger(nil))
	_, err := f.service.History(context.Background(), 10)
	assert.ErrorIs(t, err, ErrQueryLogUnavailable)
}

func TestFAQService_Stats(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.service.Ingest(ctx, "a.md", "alpha")
	require.NoError(t, err)
	_, err = f.service.Ask(ctx, "q")
	require.NoError(t, err)

	stats := f.service.Stats(ctx)
	assert.Equal(t, int64(1), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.DocumentsIndexed)
	assert.Equal(t, "test_docs", stats.Collection)
	assert.Equal(t, int64(1), f.metrics.documents)

	f.queryLog.err = errors.New("down")
	f.backend.mu.Lock()
	f.backend.countErr = errBackendDown
	f.backend.mu.Unlock()

	stats = f.service.Stats(ctx)
	assert.Zero(t, stats.TotalQueries)
	assert.Zero(t, stats.DocumentsIndexed)
}

func TestFAQService_Health(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	report := f.service.Health(ctx)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, map[string]string{
		ServiceDatabase:    StatusHealthy,
		ServiceRedis:       StatusHealthy,
		ServiceVectorStore: StatusHealthy,
	}, report.Services)

	f.kv.err = errors.New("redis down")
	report = f.service.Health(ctx)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUnhealthy, report.Services[ServiceRedis])
	assert.Equal(t, StatusHealthy, report.Services[ServiceVectorStore])
	assert.False(t, f.metrics.serviceUp[ServiceRedis])
	assert.True(t, f.metrics.serviceUp[ServiceDatabase])
}

func TestFAQService_HealthWithoutQueryLog(t *testing.T) {
	f := newServiceFixture(t, WithQueryLogger(nil))
	report := f.service.Health(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUnhealthy, report.Services[ServiceDatabase])
}

func TestFAQService_ClearCache(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.service.Ask(ctx, "q1")
	require.NoError(t, err)
	_, err = f.service.Ask(ctx, "q2")
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.service.ClearCache(ctx))

	pkg, err := f.service.Ask(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, pkg.Cached)
}

func TestFAQService_Providers(t *testing.T) {
	f := newServiceFixture(t)
	other := newFakeProvider("openai")
	other.configured = false
	f.service.generator.Registry().Register(other)

	descs := f.service.Providers()
	require.Len(t, descs, 2)
	assert.Equal(t, "anthropic", descs[0].Name)
	assert.True(t, descs[0].Active)
	assert.Equal(t, "openai", descs[1].Name)
	assert.False(t, descs[1].IsConfigured)

	err := f.service.SelectProvider("openai")
	assert.ErrorIs(t, err, ErrConfiguration)
	err = f.service.SelectProvider("mistral")
	assert.ErrorIs(t, err, llm.ErrProviderNotFound)
	assert.Equal(t, "anthropic", f.service.generator.Registry().ActiveName())

	other.configured = true
	require.NoError(t, f.service.SelectProvider("openai"))
	assert.Equal(t, "openai", f.service.generator.Registry().ActiveName())
}

func TestFAQService_LoadDirectory(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "faq.md"), []byte("SmartTask FAQ."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.txt"), []byte("User guide."), 0o644))
	manual := strings.Repeat("Step one of the setup ", 60)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.md"), []byte(manual), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), []byte{0x89, 0x50}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte{0xff, 0xfe, 0xfd}, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "deep.md"), []byte("Nested."), 0o644))

	manualChunks := len(f.service.retrieval.chunker.Split(manual))
	require.Greater(t, manualChunks, 1)

	total, err := f.service.LoadDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2+manualChunks, total, "返回全部文件的片段总数")
	assert.Len(t, f.backend.sources(), total)
	assert.Contains(t, f.backend.sources(), "faq.md_0")
	assert.Contains(t, f.backend.sources(), "guide.txt_0")
	assert.NotContains(t, f.backend.sources(), "deep.md_0")
}

func TestFAQService_LoadDirectoryMissing(t *testing.T) {
	f := newServiceFixture(t)
	total, err := f.service.LoadDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestFAQService_IngestFailure(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.backend.mu.Lock()
	f.backend.upsertErr = errBackendDown
	f.backend.mu.Unlock()

	_, err := f.service.Ingest(ctx, "a.md", "alpha")
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.Equal(t, []bool{false}, f.metrics.uploads)
}
