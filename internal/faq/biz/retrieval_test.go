package biz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetrieval(t *testing.T, backend *fakeBackend) (*RetrievalStore, *immediateSleep) {
	t.Helper()
	chunker, err := NewChunker(500, 50)
	require.NoError(t, err)

	store := NewRetrievalStore(backend, chunker, &RetrievalConfig{
		Collection:           "test_docs",
		TopK:                 3,
		MaxReconnectAttempts: 3,
		BaseDelay:            time.Second,
	})
	sleeper := &immediateSleep{}
	store.sleep = sleeper.sleep
	return store, sleeper
}

func TestRetrievalStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store, _ := newTestRetrieval(t, backend)
	require.NoError(t, store.Connect(ctx))

	n, err := store.AddDocument(ctx, "pricing.md", "Pro plan is $9/user/month.")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"pricing.md_0"}, backend.sources())

	results := store.Search(ctx, "How much is Pro?", 0)
	require.Len(t, results, 1)
	assert.Equal(t, "pricing.md", results[0].Document)
	assert.Equal(t, "Pro plan is $9/user/month.", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, 3, backend.lastTopK, "topK <= 0 使用默认值")
}

func TestRetrievalStore_AddDocumentReplacesChunks(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store, _ := newTestRetrieval(t, backend)
	require.NoError(t, store.Connect(ctx))

	_, err := store.AddDocument(ctx, "guide.md", "Old guide content.")
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, "other.md", "Other content.")
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, "guide.md", "New guide content.")
	require.NoError(t, err)

	assert.Equal(t, []string{"other.md_0", "guide.md_0"}, backend.sources())
	for _, c := range backend.chunks {
		assert.NotEqual(t, "Old guide content.", c.text)
	}
	assert.Equal(t, int64(0), backend.chunks[1].metadata["chunk_index"])
}

func TestRetrievalStore_AddDocumentEmpty(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store, _ := newTestRetrieval(t, backend)
	require.NoError(t, store.Connect(ctx))

	n, err := store.AddDocument(ctx, "empty.md", "   \n  ")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, backend.upsertCalls)
}

func TestRetrievalStore_AddDocumentFailureMarksUnavailable(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{upsertErr: errBackendDown}
	store, _ := newTestRetrieval(t, backend)
	require.NoError(t, store.Connect(ctx))

	_, err := store.AddDocument(ctx, "guide.md", "content")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.False(t, store.Available())
	assert.Contains(t, store.State().LastError, "connection refused")
}

func TestRetrievalStore_SearchDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{queryErr: errBackendDown}
	store, _ := newTestRetrieval(t, backend)
	require.NoError(t, store.Connect(ctx))

	assert.Empty(t, store.Search(ctx, "anything", 3))
	assert.False(t, store.Available())
	assert.Empty(t, store.GetContext(ctx, "anything", 3))
}

func TestRetrievalStore_ReconnectBackoff(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{connectErr: errBackendDown}
	store, sleeper := newTestRetrieval(t, backend)

	require.ErrorIs(t, store.Connect(ctx), ErrRetrievalUnavailable)
	assert.Zero(t, store.State().ReconnectAttempts, "首次连接不消耗重连次数")

	for i := 0; i < 3; i++ {
		assert.Empty(t, store.Search(ctx, "q", 3))
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.recorded())
	assert.Equal(t, 3, store.State().ReconnectAttempts)
	assert.Equal(t, 4, backend.connectCalls)

	// 次数用尽后立即失败，不再等待也不再连接
	err := store.EnsureConnection(ctx)
	require.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.Len(t, sleeper.recorded(), 3)
	assert.Equal(t, 4, backend.connectCalls)
	assert.Zero(t, backend.queryCalls)
}

func TestRetrievalStore_ReconnectSucceeds(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{connectErrs: []error{errBackendDown, errBackendDown}}
	store, sleeper := newTestRetrieval(t, backend)

	require.Error(t, store.Connect(ctx))
	require.Error(t, store.EnsureConnection(ctx))
	require.NoError(t, store.EnsureConnection(ctx))

	assert.True(t, store.Available())
	assert.Zero(t, store.State().ReconnectAttempts, "成功后计数清零")
	assert.Empty(t, store.State().LastError)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.recorded())
}

func TestRetrievalStore_HealthCheckRestoresReconnect(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{connectErr: errBackendDown}
	store, _ := newTestRetrieval(t, backend)

	require.Error(t, store.Connect(ctx))
	for i := 0; i < 4; i++ {
		_ = store.EnsureConnection(ctx)
	}
	require.Equal(t, 3, store.State().ReconnectAttempts)
	assert.False(t, store.HealthCheck(ctx))

	backend.mu.Lock()
	backend.connectErr = nil
	backend.mu.Unlock()

	assert.True(t, store.HealthCheck(ctx))
	assert.True(t, store.Available())
	assert.Zero(t, store.State().ReconnectAttempts)
}

func TestRetrievalStore_HealthCheckHeartbeatFailure(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{heartbeatErr: errBackendDown}
	store, _ := newTestRetrieval(t, backend)
	require.NoError(t, store.Connect(ctx))

	assert.False(t, store.HealthCheck(ctx))
	assert.False(t, store.Available())
}

func TestRetrievalStore_ResetReconnectCounter(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{connectErr: errBackendDown}
	store, sleeper := newTestRetrieval(t, backend)

	_ = store.Connect(ctx)
	for i := 0; i < 3; i++ {
		_ = store.EnsureConnection(ctx)
	}
	store.ResetReconnectCounter()
	assert.Zero(t, store.State().ReconnectAttempts)

	_ = store.EnsureConnection(ctx)
	assert.Equal(t, time.Second, sleeper.recorded()[3], "计数清零后从基础延迟重新开始")
}

func TestRetrievalStore_ZeroAttemptsDisablesReconnect(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{connectErr: errBackendDown}
	chunker, err := NewChunker(100, 10)
	require.NoError(t, err)
	store := NewRetrievalStore(backend, chunker, &RetrievalConfig{MaxReconnectAttempts: 0})
	sleeper := &immediateSleep{}
	store.sleep = sleeper.sleep

	_ = store.Connect(ctx)
	require.ErrorIs(t, store.EnsureConnection(ctx), ErrRetrievalUnavailable)
	assert.Empty(t, sleeper.recorded())
	assert.Equal(t, 1, backend.connectCalls)
}

func TestRetrievalStore_Stats(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store, _ := newTestRetrieval(t, backend)
	require.NoError(t, store.Connect(ctx))

	_, err := store.AddDocument(ctx, "a.md", "alpha")
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, "b.md", "beta")
	require.NoError(t, err)

	stats := store.Stats(ctx)
	assert.Equal(t, "test_docs", stats.Collection)
	assert.Equal(t, int64(2), stats.DocumentCount)
	assert.True(t, stats.Available)

	backend.mu.Lock()
	backend.countErr = errBackendDown
	backend.mu.Unlock()

	stats = store.Stats(ctx)
	assert.Zero(t, stats.DocumentCount)
	assert.False(t, stats.Available)
	assert.NotEmpty(t, stats.LastError)
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext(nil))

	got := FormatContext([]SearchResult{
		{Document: "pricing.md", Text: "Pro plan is $9."},
		{Document: "faq.md", Text: "Free plan has 3 projects."},
	})
	assert.Equal(t, "[source: pricing.md]\nPro plan is $9.\n\n---\n\n[source: faq.md]\nFree plan has 3 projects.", got)
}

func TestNewRetrievalStore_Defaults(t *testing.T) {
	chunker, err := NewChunker(100, 10)
	require.NoError(t, err)
	store := NewRetrievalStore(&fakeBackend{}, chunker, nil)

	assert.Equal(t, DefaultCollection, store.Collection())
	assert.Equal(t, DefaultTopK, store.config.TopK)
	assert.Equal(t, DefaultMaxReconnectAttempts, store.config.MaxReconnectAttempts)
	assert.False(t, store.Available())
}

func TestRetrievalStore_ConcurrentCallersShareReconnect(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store, _ := newTestRetrieval(t, backend)
	sleeper := newGatedSleep()
	store.sleep = sleeper.sleep

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			assert.Empty(t, store.Search(ctx, "q", 3))
		}()
	}

	<-sleeper.entered
	assert.Equal(t, 1, store.State().ReconnectAttempts, "等待期间只消耗一次重连")
	close(sleeper.release)
	wg.Wait()

	assert.Equal(t, []time.Duration{time.Second}, sleeper.recorded())
	assert.Equal(t, 1, backend.connectCalls)
	assert.True(t, store.Available())
	assert.Zero(t, store.State().ReconnectAttempts)
	assert.Equal(t, callers, backend.queryCalls)
}

func TestRetrievalStore_CancelledCallerDoesNotAbortReconnect(t *testing.T) {
	backend := &fakeBackend{}
	store, _ := newTestRetrieval(t, backend)
	sleeper := newGatedSleep()
	store.sleep = sleeper.sleep

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() { leaderErr <- store.EnsureConnection(leaderCtx) }()

	<-sleeper.entered
	cancel()
	err := <-leaderErr
	require.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	// 后来的调用方加入仍在进行的重连并得到连接结果
	followerErr := make(chan error, 1)
	go func() { followerErr <- store.EnsureConnection(context.Background()) }()
	close(sleeper.release)
	require.NoError(t, <-followerErr)

	assert.Equal(t, 1, backend.connectCalls)
	assert.True(t, store.Available())
	assert.Zero(t, store.State().ReconnectAttempts)
	assert.Len(t, sleeper.recorded(), 1)
}

func TestRetrievalStore_HealthCheckJoinsInFlightReconnect(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store, _ := newTestRetrieval(t, backend)
	sleeper := newGatedSleep()
	store.sleep = sleeper.sleep

	searchDone := make(chan struct{})
	go func() {
		defer close(searchDone)
		store.Search(ctx, "q", 3)
	}()
	<-sleeper.entered

	healthy := make(chan bool, 1)
	go func() { healthy <- store.HealthCheck(ctx) }()
	close(sleeper.release)

	assert.True(t, <-healthy)
	<-searchDone
	assert.Equal(t, 1, backend.connectCalls, "健康检查不与重连并发连接")
	assert.True(t, store.Available())
}
