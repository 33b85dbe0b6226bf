package biz

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/sentinel-faq/pkg/llm"
)

var errBackendDown = errors.New("connection refused")

// memoryKV 内存 KVStore，err 非 nil 时所有操作失败。
type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var keys []string
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryKV) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryKV) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

type storedChunk struct {
	id       string
	text     string
	metadata map[string]any
}

// fakeBackend 内存向量后端，按插入顺序返回，并记录调用次数。
type fakeBackend struct {
	mu sync.Mutex

	chunks []storedChunk

	connectErrs  []error // 按顺序消费，耗尽后使用 connectErr
	connectErr   error
	queryErr     error
	upsertErr    error
	deleteErr    error
	countErr     error
	heartbeatErr error

	connectCalls int
	queryCalls   int
	upsertCalls  int
	deleteCalls  int
	lastQuery    string
	lastTopK     int
}

func (f *fakeBackend) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return f.connectErr
}

func (f *fakeBackend) Query(_ context.Context, text string, topK int) (*QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	f.lastQuery = text
	f.lastTopK = topK
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	res := &QueryResult{}
	for i, c := range f.chunks {
		if i >= topK {
			break
		}
		res.Documents = append(res.Documents, c.text)
		res.Metadatas = append(res.Metadatas, c.metadata)
		res.Distances = append(res.Distances, 0.25*float32(i))
	}
	return res, nil
}

func (f *fakeBackend) Upsert(_ context.Context, ids, documents []string, metadatas []map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for i := range ids {
		f.chunks = append(f.chunks, storedChunk{id: ids[i], text: documents[i], metadata: metadatas[i]})
	}
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.metadata["source"] != source {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func (f *fakeBackend) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.chunks)), nil
}

func (f *fakeBackend) Heartbeat(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatErr
}

func (f *fakeBackend) Close(context.Context) error { return nil }

func (f *fakeBackend) sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.chunks))
	for _, c := range f.chunks {
		out = append(out, c.id)
	}
	return out
}

// fakeProvider 生成供应商，前 failures 次调用失败。
type fakeProvider struct {
	mu         sync.Mutex
	name       string
	configured bool
	failures   int
	err        error
	answer     string
	tokens     int

	calls        int
	lastMessage  string
	lastSystem   string
	lastMaxToken int
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{
		name:       name,
		configured: true,
		err:        errors.New("upstream returned 503"),
		answer:     "The Pro plan costs $9 per user per month.",
		tokens:     42,
	}
}

func (p *fakeProvider) Name() string         { return p.name }
func (p *fakeProvider) DefaultModel() string { return p.name + "-model" }
func (p *fakeProvider) IsConfigured() bool   { return p.configured }

func (p *fakeProvider) Generate(_ context.Context, userMessage, systemPrompt string, maxTokens int, _ string) (*llm.Generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastMessage = userMessage
	p.lastSystem = systemPrompt
	p.lastMaxToken = maxTokens
	if p.calls <= p.failures {
		return nil, p.err
	}
	return &llm.Generation{Text: p.answer, TokensUsed: p.tokens}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memoryQueryLog 内存查询日志。
type memoryQueryLog struct {
	mu      sync.Mutex
	records []*QueryRecord
	err     error
}

func (l *memoryQueryLog) Record(_ context.Context, rec *QueryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *memoryQueryLog) Recent(_ context.Context, limit int) ([]*QueryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]*QueryRecord, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

func (l *memoryQueryLog) Count(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	return int64(len(l.records)), nil
}

func (l *memoryQueryLog) Ping(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *memoryQueryLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// recordingMetrics 记录业务指标调用。
type recordingMetrics struct {
	mu          sync.Mutex
	cacheHits   int
	cacheMisses int
	llmCalls    []string
	llmErrors   int
	searches    []string
	uploads     []bool
	documents   int64
	serviceUp   map[string]bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{serviceUp: make(map[string]bool)}
}

func (m *recordingMetrics) RecordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *recordingMetrics) RecordCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *recordingMetrics) RecordLLMCall(provider string, _ int, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llmCalls = append(m.llmCalls, provider)
	if err != nil {
		m.llmErrors++
	}
}

func (m *recordingMetrics) RecordSearch(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, status)
}

func (m *recordingMetrics) RecordDocumentUpload(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, success)
}

func (m *recordingMetrics) SetDocumentsIndexed(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = count
}

func (m *recordingMetrics) SetServiceUp(service string, up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serviceUp[service] = up
}

// immediateSleep 记录重连等待时间而不真正等待。
type immediateSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *immediateSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *immediateSleep) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// gatedSleep 记录等待时间并阻塞到 release 关闭或 ctx 取消，进入等待时向 entered 发送信号。
type gatedSleep struct {
	immediateSleep
	entered chan struct{}
	release chan struct{}
}

func newGatedSleep() *gatedSleep {
	return &gatedSleep{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (s *gatedSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	s.entered <- struct{}{}

	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
