// Package metrics 提供 FAQ 服务的 Prometheus 指标。
//
// 所有指标注册在私有 Registry 上，由 /metrics 端点导出。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/sentinel-faq/internal/faq/biz"
	"github.com/kart-io/sentinel-faq/pkg/infra/middleware"
)

// Namespace 指标名称前缀。
const Namespace = "smarttask_faq"

// 状态标签取值。
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics FAQ 服务指标集合。
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	llmTokens        *prometheus.CounterVec
	llmRequests      *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
	ragSearches      *prometheus.CounterVec
	documentsIndexed prometheus.Gauge
	documentUploads  *prometheus.CounterVec
	serviceUp        *prometheus.GaugeVec
	appInfo          *prometheus.GaugeVec
}

var (
	_ biz.Metrics                = (*Metrics)(nil)
	_ middleware.RequestRecorder = (*Metrics)(nil)
)

// New 创建指标集合并注册到新的私有 Registry。
func New(version string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"method", "endpoint"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Total answer cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_misses_total",
			Help:      "Total answer cache misses",
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total tokens used by LLM calls",
		}, []string{"provider"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "llm_requests_total",
			Help:      "Total LLM generation requests",
		}, []string{"provider", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM generation latency in seconds",
			Buckets:   []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}, []string{"provider"}),
		ragSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rag_searches_total",
			Help:      "Total knowledge base searches",
		}, []string{"status"}),
		documentsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "rag_documents_indexed",
			Help:      "Number of chunks in the vector store",
		}),
		documentUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "document_uploads_total",
			Help:      "Total document uploads",
		}, []string{"status"}),
		serviceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "service_up",
			Help:      "Whether a backing service is reachable (1) or not (0)",
		}, []string{"service"}),
		appInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "app_info",
			Help:      "Application build information",
		}, []string{"version"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestLatency,
		m.cacheHits,
		m.cacheMisses,
		m.llmTokens,
		m.llmRequests,
		m.llmLatency,
		m.ragSearches,
		m.documentsIndexed,
		m.documentUploads,
		m.serviceUp,
		m.appInfo,
	)
	m.appInfo.WithLabelValues(version).Set(1)

	return m
}

// Registry 返回私有 Registry。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回导出指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest 记录一次 HTTP 请求。
func (m *Metrics) ObserveRequest(method, endpoint, status string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.requestLatency.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// RecordCacheHit 记录缓存命中。
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// RecordCacheMiss 记录缓存未命中。
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}

// RecordLLMCall 记录一次生成调用，失败时只计数不记录耗时与 token。
func (m *Metrics) RecordLLMCall(provider string, tokens int, elapsed time.Duration, err error) {
	if provider == "" {
		provider = "none"
	}
	if err != nil {
		m.llmRequests.WithLabelValues(provider, statusError).Inc()
		return
	}
	m.llmRequests.WithLabelValues(provider, statusSuccess).Inc()
	m.llmLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if tokens > 0 {
		m.llmTokens.WithLabelValues(provider).Add(float64(tokens))
	}
}

// RecordSearch 记录一次检索。
func (m *Metrics) RecordSearch(status string) {
	m.ragSearches.WithLabelValues(status).Inc()
}

// RecordDocumentUpload 记录一次文档索引。
func (m *Metrics) RecordDocumentUpload(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.documentUploads.WithLabelValues(status).Inc()
}

// SetDocumentsIndexed 设置已索引片段数。
func (m *Metrics) SetDocumentsIndexed(count int64) {
	m.documentsIndexed.Set(float64(count))
}

// SetServiceUp 设置后端服务可用状态。
func (m *Metrics) SetServiceUp(service string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.serviceUp.WithLabelValues(service).Set(v)
}
