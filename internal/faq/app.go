// Package faq provides the SmartTask FAQ service application.
package faq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-faq/internal/faq/biz"
	"github.com/kart-io/sentinel-faq/internal/faq/handler"
	"github.com/kart-io/sentinel-faq/internal/faq/metrics"
	"github.com/kart-io/sentinel-faq/internal/faq/router"
	"github.com/kart-io/sentinel-faq/internal/faq/store"
	"github.com/kart-io/sentinel-faq/internal/faq/watcher"
	"github.com/kart-io/sentinel-faq/pkg/component/gormx"
	"github.com/kart-io/sentinel-faq/pkg/component/mysql"
	"github.com/kart-io/sentinel-faq/pkg/component/postgres"
	"github.com/kart-io/sentinel-faq/pkg/component/redis"
	"github.com/kart-io/sentinel-faq/pkg/component/sqlite"
	"github.com/kart-io/sentinel-faq/pkg/component/storage"
	"github.com/kart-io/sentinel-faq/pkg/infra/app"
	"github.com/kart-io/sentinel-faq/pkg/infra/pool"
	"github.com/kart-io/sentinel-faq/pkg/infra/server"
	httpserver "github.com/kart-io/sentinel-faq/pkg/infra/server/http"
	"github.com/kart-io/sentinel-faq/pkg/infra/tracing"
	"github.com/kart-io/sentinel-faq/pkg/llm"
	"github.com/kart-io/sentinel-faq/pkg/llm/resilience"
	querylogopts "github.com/kart-io/sentinel-faq/pkg/options/querylog"

	// 注册生成与向量化供应商
	_ "github.com/kart-io/sentinel-faq/pkg/llm/anthropic"
	_ "github.com/kart-io/sentinel-faq/pkg/llm/deepseek"
	_ "github.com/kart-io/sentinel-faq/pkg/llm/ollama"
	_ "github.com/kart-io/sentinel-faq/pkg/llm/openai"
)

const (
	// Name is the name of the application.
	Name = "sentinel-faq"

	// commandDesc is the description of the command.
	commandDesc = `SmartTask FAQ Service

The retrieval-augmented FAQ service for SmartTask customer support.

This server provides:
  - Document indexing into a Milvus collection
  - Question answering grounded on the indexed documents
  - Answer caching in Redis and a persistent query history
  - Runtime switching between Anthropic, OpenAI, DeepSeek and Ollama`

	// embeddingCachePrefix 与答案缓存前缀分开，清空答案缓存时不影响向量缓存。
	embeddingCachePrefix = "emb:"

	startupPingTimeout = 5 * time.Second
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(func(ctx context.Context) error {
			return Run(ctx, opts)
		}),
	)
}

// Run runs the FAQ service until ctx is cancelled.
func Run(ctx context.Context, opts *ServerOptions) error {
	// 1. 初始化日志
	opts.LogOptions.AddInitialField("service.name", Name)
	opts.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := opts.LogOptions.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting FAQ service...")

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, opts.TracingOptions, Name, app.GetVersion())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.HTTPOptions.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("failed to shutdown tracer provider", "error", err.Error())
		}
	}()

	// 3. 初始化指标
	m := metrics.New(app.GetVersion())

	// 存储在后台任务结束之后关闭
	var storages *storage.Manager
	defer func() {
		if storages == nil {
			return
		}
		if err := storages.CloseAll(); err != nil {
			logger.Warnw("failed to close storage clients", "error", err.Error())
		}
	}()

	pools := pool.NewManager()
	defer func() {
		if err := pools.ReleaseAllTimeout(opts.HTTPOptions.ShutdownTimeout); err != nil {
			logger.Warnw("failed to release goroutine pools", "error", err.Error())
		}
	}()
	healthPool, err := pools.RegisterType(pool.HealthCheckPool)
	if err != nil {
		return fmt.Errorf("failed to create health check pool: %w", err)
	}
	backgroundPool, err := pools.RegisterType(pool.BackgroundPool)
	if err != nil {
		return fmt.Errorf("failed to create background pool: %w", err)
	}
	storages = storage.NewManager(healthPool)

	// 4. Redis：答案缓存与向量缓存
	redisClient, err := openRedis(ctx, opts, storages)
	if err != nil {
		return err
	}
	var kv biz.KVStore
	if redisClient != nil {
		kv = store.NewRedisKV(redisClient.Client())
	}
	cache := biz.NewAnswerCache(kv, &biz.AnswerCacheConfig{
		TTL:       opts.CacheOptions.TTL,
		KeyPrefix: opts.CacheOptions.KeyPrefix,
	})
	m.SetServiceUp(biz.ServiceRedis, cache.Ping(ctx))

	// 5. 向量化供应商与 Milvus 检索存储
	retrieval, err := openRetrieval(ctx, opts, redisClient)
	if err != nil {
		return err
	}
	defer func() {
		if err := retrieval.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warnw("failed to close vector store", "error", err.Error())
		}
	}()

	// 6. 查询日志
	var queryLog biz.QueryLogger
	if repo := openQueryLog(ctx, opts.QueryLogOptions, storages); repo != nil {
		queryLog = repo
	}

	// 7. 生成供应商注册表
	registry, err := buildRegistry(opts)
	if err != nil {
		return err
	}

	// 8. 初始化 Biz 层
	faqOpts := opts.FAQOptions
	generator := biz.NewAnswerGenerator(registry, &biz.GeneratorConfig{
		SystemPrompt:   faqOpts.SystemPrompt,
		MaxTokens:      faqOpts.MaxTokens,
		Retry:          retryConfig(opts),
		CircuitBreaker: circuitBreakerConfig(opts),
	})
	serviceConfig := &biz.ServiceConfig{
		TopK:     faqOpts.TopK,
		CacheTTL: opts.CacheOptions.TTL,
	}
	svc := biz.NewFAQService(cache, retrieval, generator, serviceConfig,
		biz.WithQueryLogger(queryLog),
		biz.WithTaskSubmitter(backgroundPool),
		biz.WithMetrics(m),
	)
	logger.Info("FAQ service initialized")

	logStorageHealth(ctx, storages)
	m.SetServiceUp(biz.ServiceVectorStore, retrieval.Available())
	m.SetServiceUp(biz.ServiceDatabase, queryLog != nil)

	// 9. 索引文档目录
	if retrieval.Available() {
		if _, err := svc.LoadDirectory(ctx, faqOpts.DocumentsDir); err != nil {
			logger.Warnw("failed to load documents directory", "directory", faqOpts.DocumentsDir, "error", err.Error())
		}
	} else {
		logger.Warnw("vector store unavailable, skipping initial document load", "directory", faqOpts.DocumentsDir)
	}

	servers := server.NewManager(opts.HTTPOptions.ShutdownTimeout)

	// 10. 文档目录监听
	if faqOpts.WatchDocuments {
		if _, err := os.Stat(faqOpts.DocumentsDir); err != nil {
			logger.Warnw("documents directory not found, watcher disabled", "directory", faqOpts.DocumentsDir)
		} else {
			servers.AddServer(watcher.New(faqOpts.DocumentsDir, svc, watcher.DefaultDebounce))
		}
	}

	// 11. HTTP 服务器
	httpServer := httpserver.NewServer(opts.HTTPOptions, m)
	router.Register(httpServer.Engine(), handler.NewFAQHandler(svc), m.Handler())
	servers.AddServer(httpServer)

	logger.Infow("FAQ service is ready", "addr", opts.HTTPOptions.Addr, "provider", registry.ActiveName())
	return servers.Run(ctx)
}

// openRedis 创建 Redis 客户端。缓存关闭时返回 nil；Redis 不可达时只记录警告，
// 缓存按未命中降级，Redis 恢复后自动生效。
func openRedis(ctx context.Context, opts *ServerOptions, storages *storage.Manager) (*redis.Client, error) {
	if !opts.CacheOptions.Enabled {
		logger.Info("Answer cache disabled")
		return nil, nil
	}

	client, err := redis.New(opts.CacheOptions.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	if err := storages.Register(client.Name(), client); err != nil {
		_ = client.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logger.Warnw("redis unavailable, answer cache will run degraded",
			"addr", opts.CacheOptions.Redis.Addr(),
			"error", err.Error(),
		)
		return client, nil
	}
	logger.Infow("Redis client initialized", "addr", opts.CacheOptions.Redis.Addr())
	return client, nil
}

// openRetrieval 创建向量化供应商与检索存储。连接失败时检索存储以不可用状态启动。
func openRetrieval(ctx context.Context, opts *ServerOptions, redisClient *redis.Client) (*biz.RetrievalStore, error) {
	llmOpts := opts.LLMOptions
	faqOpts := opts.FAQOptions

	base, err := llm.NewEmbeddingProvider(llmOpts.Embedding.Provider, llmOpts.EmbeddingConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	var embedder llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(base, nil, resilience.DefaultCircuitBreakerConfig())
	if redisClient != nil {
		embedder = llm.NewCachedEmbeddingProvider(embedder, redisClient.Client(), &llm.EmbeddingCacheConfig{
			Enabled:   llmOpts.Embedding.CacheEnabled,
			TTL:       llmOpts.Embedding.CacheTTL,
			KeyPrefix: embeddingCachePrefix,
		})
	}
	logger.Infow("Embedding provider initialized",
		"provider", llmOpts.Embedding.Provider,
		"model", llmOpts.Embedding.Model,
	)

	chunker, err := biz.NewChunker(faqOpts.ChunkSize, faqOpts.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	backend := store.NewMilvusBackend(opts.MilvusOptions, &store.MilvusConfig{
		Collection: faqOpts.Collection,
		Dimension:  llmOpts.Embedding.Dimension,
	}, embedder)
	retrieval := biz.NewRetrievalStore(backend, chunker, &biz.RetrievalConfig{
		Collection:           faqOpts.Collection,
		TopK:                 faqOpts.TopK,
		MaxReconnectAttempts: faqOpts.MaxReconnectAttempts,
		BaseDelay:            faqOpts.ReconnectBaseDelay,
	})

	if err := retrieval.Connect(ctx); err != nil {
		logger.Warnw("vector store unavailable, starting without retrieval",
			"address", opts.MilvusOptions.Address,
			"error", err.Error(),
		)
	}
	return retrieval, nil
}

// openQueryLog 打开查询日志数据库并迁移表结构，任何失败都只禁用查询日志。
func openQueryLog(ctx context.Context, opts *querylogopts.Options, storages *storage.Manager) *store.QueryLogRepo {
	if !opts.Enabled {
		logger.Info("Query log disabled")
		return nil
	}

	client, err := openQueryLogDB(ctx, opts)
	if err != nil {
		logger.Warnw("database unavailable, query logging disabled", "driver", opts.Driver, "error", err.Error())
		return nil
	}

	repo := store.NewQueryLogRepo(client)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Warnw("failed to migrate query history, query logging disabled", "error", err.Error())
		_ = client.Close()
		return nil
	}
	if err := storages.Register(client.Name(), client); err != nil {
		_ = client.Close()
		logger.Warnw("failed to register query log database", "error", err.Error())
		return nil
	}

	logger.Infow("Query log initialized", "driver", opts.Driver)
	return repo
}

func openQueryLogDB(ctx context.Context, opts *querylogopts.Options) (*gormx.Client, error) {
	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()

	switch opts.Driver {
	case querylogopts.DriverPostgres:
		return postgres.New(pingCtx, opts.Postgres)
	case querylogopts.DriverMySQL:
		return mysql.New(pingCtx, opts.MySQL)
	case querylogopts.DriverSQLite:
		return sqlite.New(pingCtx, opts.SQLitePath, 1) // Silent
	default:
		return nil, fmt.Errorf("unsupported query log driver %q", opts.Driver)
	}
}

// buildRegistry 注册全部生成供应商并选中配置的供应商。选中失败是启动错误。
func buildRegistry(opts *ServerOptions) (*llm.Registry, error) {
	registry := llm.NewRegistry()
	for _, name := range opts.LLMOptions.ProviderNames() {
		p, err := llm.NewGenerationProvider(name, opts.LLMOptions.Providers()[name].ToConfigMap())
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
		}
		registry.Register(p)
	}

	if err := registry.Select(opts.LLMOptions.Provider); err != nil {
		if errors.Is(err, llm.ErrProviderNotConfigured) {
			return nil, fmt.Errorf("provider %s has no credentials, set its api key: %w", opts.LLMOptions.Provider, err)
		}
		return nil, fmt.Errorf("failed to select provider %s: %w", opts.LLMOptions.Provider, err)
	}
	logger.Infow("Generation providers registered",
		"active", registry.ActiveName(),
		"available", registry.AvailableProviders(),
	)
	return registry, nil
}

func retryConfig(opts *ServerOptions) *resilience.RetryConfig {
	r := opts.FAQOptions.Retry
	return &resilience.RetryConfig{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   r.Multiplier,
	}
}

func circuitBreakerConfig(opts *ServerOptions) *resilience.CircuitBreakerConfig {
	cb := opts.FAQOptions.CircuitBreaker
	if !cb.Enabled {
		return nil
	}
	return &resilience.CircuitBreakerConfig{
		MaxFailures:      cb.MaxFailures,
		Timeout:          cb.Timeout,
		HalfOpenMaxCalls: 1,
	}
}

// logStorageHealth 启动时检查一次存储连接并记录结果。
func logStorageHealth(ctx context.Context, storages *storage.Manager) {
	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	for name, status := range storages.HealthCheckAll(pingCtx) {
		if status.Healthy {
			logger.Infow("storage healthy", "name", name, "latency", status.Latency.String())
			continue
		}
		logger.Warnw("storage unhealthy", "name", name, "error", fmt.Sprint(status.Error))
	}
}
