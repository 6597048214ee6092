package supportdesk

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/supportdesk/internal/supportdesk/biz"
	"github.com/kart-io/supportdesk/internal/supportdesk/handler"
	"github.com/kart-io/supportdesk/internal/supportdesk/router"
	"github.com/kart-io/supportdesk/internal/supportdesk/store"
	"github.com/kart-io/supportdesk/pkg/component/milvus"
	"github.com/kart-io/supportdesk/pkg/llm"
	_ "github.com/kart-io/supportdesk/pkg/llm/ollama"
	_ "github.com/kart-io/supportdesk/pkg/llm/openai"
	"github.com/kart-io/supportdesk/pkg/pool"
)

// Server 支持聊天服务实例，持有全部组件的生命周期。
type Server struct {
	opts *Options

	httpServer   *http.Server
	service      *biz.SupportService
	milvusClient *milvus.Client
	redisClient  *goredis.Client
	sessionStore store.SessionStore
	background   *pool.Pool
}

// NewServer 按配置组装服务：日志、向量库、会话存储、缓存、模型供应商、
// 业务层与 HTTP 路由。
func NewServer(opts *Options) (*Server, error) {
	if err := opts.Log.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var (
		milvusClient *milvus.Client
		vectorStore  store.VectorStore
		err          error
	)
	switch opts.Knowledge.VectorDriver {
	case "memory":
		vectorStore = store.NewMemoryVectorStore()
		logger.Warnw("使用内存向量索引，知识库数据不持久化")
	default:
		milvusClient, err = milvus.New(opts.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to create milvus client: %w", err)
		}
		vectorStore = store.NewMilvusStore(milvusClient)
	}

	// Redis 不可用时缓存降级为关闭，不阻塞启动。
	var redisClient *goredis.Client
	cacheEnabled := opts.Cache.Enabled
	if cacheEnabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         opts.Cache.Redis.Addr(),
			Password:     opts.Cache.Redis.Password,
			DB:           opts.Cache.Redis.Database,
			MaxRetries:   opts.Cache.Redis.MaxRetries,
			PoolSize:     opts.Cache.Redis.PoolSize,
			DialTimeout:  opts.Cache.Redis.DialTimeout,
			ReadTimeout:  opts.Cache.Redis.ReadTimeout,
			WriteTimeout: opts.Cache.Redis.WriteTimeout,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), opts.Cache.Redis.DialTimeout)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warnw("Redis 不可用，回答缓存已禁用", "addr", opts.Cache.Redis.Addr(), "error", err.Error())
			_ = redisClient.Close()
			redisClient = nil
			cacheEnabled = false
		}
		cancel()
	}

	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	chatConfig := opts.Chat.ToConfigMap()
	chatConfig["temperature"] = opts.Generation.Temperature
	chatConfig["max_tokens"] = opts.Generation.MaxTokens
	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat provider: %w", err)
	}

	var sessionStore store.SessionStore
	switch opts.Store.Driver {
	case "sqlite":
		sessionStore, err = store.NewSQLiteSessionStore(opts.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite session store: %w", err)
		}
	default:
		sessionStore = store.NewMemorySessionStore()
	}

	background, err := pool.NewPool("session-sweeper", pool.BackgroundPool, pool.BackgroundPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}

	cache := biz.NewAnswerCache(redisClient, &biz.AnswerCacheConfig{
		Enabled:   cacheEnabled,
		TTL:       opts.Cache.TTL,
		KeyPrefix: opts.Cache.KeyPrefix,
	})

	service := biz.NewSupportService(
		vectorStore,
		sessionStore,
		embedProvider,
		chatProvider,
		cache,
		background,
		&biz.ServiceConfig{
			IngestorConfig: &biz.IngestorConfig{
				Collection:   opts.Knowledge.Collection,
				EmbeddingDim: opts.Knowledge.EmbeddingDim,
			},
			ChunkerConfig: &biz.ChunkerConfig{
				ChunkSize:    opts.Knowledge.ChunkSize,
				ChunkOverlap: opts.Knowledge.ChunkOverlap,
				MinChunkLen:  opts.Knowledge.MinChunkLen,
			},
			RetrieverConfig: &biz.RetrieverConfig{
				Collection: opts.Knowledge.Collection,
				TopK:       opts.Knowledge.TopK,
				MinScore:   opts.Knowledge.MinScore,
			},
			GeneratorConfig: &biz.GeneratorConfig{
				Policy:        opts.Generation.Policy,
				HistoryWindow: opts.Session.HistoryWindow,
			},
			SessionConfig: &biz.SessionConfig{
				Timeout:        opts.Session.Timeout,
				MaxHistory:     opts.Session.MaxHistory,
				WelcomeMessage: opts.Session.WelcomeMessage,
				ScoreWeight:    opts.Session.ScoreWeight,
				IntentWeight:   opts.Session.IntentWeight,
				MinConfidence:  opts.Session.MinConfidence,
			},
			SearchMinScore: opts.Knowledge.SearchMinScore,
			EmbedModel:     opts.Embedding.Model,
			ChatModel:      opts.Chat.Model,
		},
	)

	readyCtx, cancel := context.WithTimeout(context.Background(), opts.Milvus.Timeout)
	defer cancel()
	if err := service.EnsureReady(readyCtx); err != nil {
		return nil, fmt.Errorf("knowledge base not ready: %w", err)
	}

	chatHandler := handler.NewChatHandler(service, opts.GetTimeout())
	knowledgeHandler := handler.NewKnowledgeHandler(service, opts.Knowledge.DataDir)

	engine := router.New(chatHandler, knowledgeHandler)
	engine.MaxMultipartMemory = opts.HTTP.MaxUploadSize

	return &Server{
		opts: opts,
		httpServer: &http.Server{
			Addr:         opts.HTTP.Addr,
			Handler:      engine,
			ReadTimeout:  opts.HTTP.ReadTimeout,
			WriteTimeout: opts.HTTP.WriteTimeout,
			IdleTimeout:  opts.HTTP.IdleTimeout,
		},
		service:      service,
		milvusClient: milvusClient,
		redisClient:  redisClient,
		sessionStore: sessionStore,
		background:   background,
	}, nil
}

// Run 启动 HTTP 服务并阻塞直到 ctx 取消，随后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP 服务启动", "addr", s.opts.HTTP.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	logger.Info("收到退出信号，开始优雅关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.HTTP.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("HTTP 服务关闭失败", "error", err.Error())
	}

	s.close()
	logger.Info("服务已退出")
	return nil
}

// close 依次释放后台池与各存储连接。
func (s *Server) close() {
	if s.background != nil {
		if err := s.background.ReleaseTimeout(5 * time.Second); err != nil {
			logger.Warnw("后台池释放超时", "error", err.Error())
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			logger.Warnw("Redis 连接关闭失败", "error", err.Error())
		}
	}
	if s.sessionStore != nil {
		if err := s.sessionStore.Close(); err != nil {
			logger.Warnw("会话存储关闭失败", "error", err.Error())
		}
	}
	if s.milvusClient != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.milvusClient.Close(closeCtx); err != nil {
			logger.Warnw("Milvus 连接关闭失败", "error", err.Error())
		}
		cancel()
	}
}
