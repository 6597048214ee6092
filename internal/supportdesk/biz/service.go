package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/supportdesk/metrics"
	"github.com/kart-io/supportdesk/internal/supportdesk/store"
	"github.com/kart-io/supportdesk/pkg/llm"
	"github.com/kart-io/supportdesk/pkg/pool"
)

// Service 定义支持聊天服务接口。
type Service interface {
	// IngestDocument 摄取一篇知识库文档。
	IngestDocument(ctx context.Context, upload *model.DocumentUpload) (*model.IngestResult, error)
	// DeleteDocument 删除知识库文档。
	DeleteDocument(ctx context.Context, documentID string) error
	// SearchKnowledge 直接检索知识库。
	SearchKnowledge(ctx context.Context, query, category string, minScore float64) ([]*model.ChunkSource, error)
	// KnowledgeStats 获取知识库统计信息。
	KnowledgeStats(ctx context.Context) (*model.KnowledgeStats, error)
	// SupportedExtensions 返回可摄取的文件扩展名。
	SupportedExtensions() []string

	// CreateSession 创建会话。
	CreateSession(ctx context.Context, userID string, metadata map[string]string) (*model.Session, error)
	// GetSession 获取会话。
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	// ProcessMessage 处理用户消息并生成回答。
	ProcessMessage(ctx context.Context, sessionID, content string) (*model.ChatResponse, error)
	// EndSession 结束会话。
	EndSession(ctx context.Context, sessionID string) (bool, error)
	// ExportSession 导出会话全文。
	ExportSession(ctx context.Context, sessionID string) (*model.SessionExport, error)
}

// ServiceConfig 支持聊天服务配置。
type ServiceConfig struct {
	IngestorConfig  *IngestorConfig
	ChunkerConfig   *ChunkerConfig
	RetrieverConfig *RetrieverConfig
	GeneratorConfig *GeneratorConfig
	SessionConfig   *SessionConfig
	CacheConfig     *AnswerCacheConfig

	// SearchMinScore 直接知识库搜索的默认分数下限。
	SearchMinScore float64
	// EmbedModel 统计信息中展示的嵌入模型名。
	EmbedModel string
	// ChatModel 统计信息中展示的对话模型名。
	ChatModel string
}

// SupportService 组合摄取、检索、生成与会话管理，提供完整的客服问答服务。
type SupportService struct {
	ingestor  *Ingestor
	retriever *Retriever
	sessions  *SessionManager
	cache     *AnswerCache
	config    *ServiceConfig
	metrics   *metrics.ChatMetrics
}

// NewSupportService 创建支持聊天服务实例。
func NewSupportService(
	vectorStore store.VectorStore,
	sessionStore store.SessionStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *AnswerCache,
	background *pool.Pool,
	config *ServiceConfig,
) *SupportService {
	chunker := NewChunker(config.ChunkerConfig)
	extractors := NewExtractorRegistry()
	ingestor := NewIngestor(vectorStore, embedProvider, chunker, extractors, config.IngestorConfig)
	retriever := NewRetriever(vectorStore, embedProvider, config.RetrieverConfig)
	classifier := NewIntentClassifier(chatProvider)
	generator := NewGenerator(chatProvider, config.GeneratorConfig)
	sessions := NewSessionManager(sessionStore, classifier, retriever, generator, cache, background, config.SessionConfig)

	return &SupportService{
		ingestor:  ingestor,
		retriever: retriever,
		sessions:  sessions,
		cache:     cache,
		config:    config,
		metrics:   metrics.Get(),
	}
}

// EnsureReady 初始化知识库集合。
func (s *SupportService) EnsureReady(ctx context.Context) error {
	return s.ingestor.EnsureReady(ctx)
}

// IngestDocument 摄取一篇知识库文档。
func (s *SupportService) IngestDocument(ctx context.Context, upload *model.DocumentUpload) (*model.IngestResult, error) {
	result, err := s.ingestor.Ingest(ctx, upload)
	if err != nil {
		s.metrics.RecordIngest(0, err)
		return nil, err
	}
	s.metrics.RecordIngest(result.ChunkCount, nil)

	// 新知识可能让已缓存的回答过时。
	if err := s.cache.Clear(ctx); err != nil {
		logger.Warnw("清空回答缓存失败", "error", err.Error())
	}
	return result, nil
}

// DeleteDocument 删除知识库文档。
func (s *SupportService) DeleteDocument(ctx context.Context, documentID string) error {
	return s.ingestor.DeleteDocument(ctx, documentID)
}

// SearchKnowledge 直接检索知识库，绕过会话流水线。
func (s *SupportService) SearchKnowledge(ctx context.Context, query, category string, minScore float64) ([]*model.ChunkSource, error) {
	if minScore <= 0 {
		minScore = s.config.SearchMinScore
	}
	results, err := s.retriever.RetrieveWithScore(ctx, query, category, minScore)
	s.metrics.RecordRetrieval(len(results), err)
	return results, err
}

// KnowledgeStats 获取知识库统计信息。
func (s *SupportService) KnowledgeStats(ctx context.Context) (*model.KnowledgeStats, error) {
	count, err := s.ingestor.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &model.KnowledgeStats{
		Collection:   s.config.IngestorConfig.Collection,
		ChunkCount:   count,
		EmbedModel:   s.config.EmbedModel,
		ChatModel:    s.config.ChatModel,
		CacheEnabled: s.cache.Enabled(),
	}, nil
}

// SupportedExtensions 返回可摄取的文件扩展名。
func (s *SupportService) SupportedExtensions() []string {
	return s.ingestor.extractors.SupportedExtensions()
}

// CreateSession 创建会话。
func (s *SupportService) CreateSession(ctx context.Context, userID string, metadata map[string]string) (*model.Session, error) {
	session, err := s.sessions.CreateSession(ctx, userID, metadata)
	if err == nil {
		s.metrics.RecordSessionCreated()
	}
	return session, err
}

// GetSession 获取会话。
func (s *SupportService) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.sessions.GetSession(ctx, sessionID)
}

// ProcessMessage 处理用户消息并生成回答。
func (s *SupportService) ProcessMessage(ctx context.Context, sessionID, content string) (*model.ChatResponse, error) {
	start := time.Now()
	resp, err := s.sessions.ProcessMessage(ctx, sessionID, content)
	s.metrics.RecordMessage(time.Since(start), err)
	if err == nil {
		s.metrics.RecordIntent(string(resp.Intent.Category), resp.Intent.Fallback)
	}
	return resp, err
}

// EndSession 结束会话。
func (s *SupportService) EndSession(ctx context.Context, sessionID string) (bool, error) {
	existed, err := s.sessions.EndSession(ctx, sessionID)
	if err == nil && existed {
		s.metrics.RecordSessionEnded()
	}
	return existed, err
}

// ExportSession 导出会话全文。
func (s *SupportService) ExportSession(ctx context.Context, sessionID string) (*model.SessionExport, error) {
	return s.sessions.Export(ctx, sessionID)
}

// ActiveSessions 返回当前会话数量。
func (s *SupportService) ActiveSessions(ctx context.Context) (int64, error) {
	return s.sessions.ActiveSessions(ctx)
}

var _ Service = (*SupportService)(nil)
