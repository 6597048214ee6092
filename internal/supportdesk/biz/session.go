package biz

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/supportdesk/metrics"
	"github.com/kart-io/supportdesk/internal/supportdesk/store"
	"github.com/kart-io/supportdesk/pkg/pool"
	apierrors "github.com/kart-io/supportdesk/pkg/utils/errors"
	"github.com/kart-io/supportdesk/pkg/utils/id"
)

// sweepInterval 两次后台过期清理之间的最小间隔。
const sweepInterval = time.Minute

// SessionConfig 会话管理配置。
type SessionConfig struct {
	// Timeout 会话空闲超时时间。
	Timeout time.Duration
	// MaxHistory 会话保留的最大消息数。
	MaxHistory int
	// WelcomeMessage 新会话的欢迎语。
	WelcomeMessage string
	// ScoreWeight 检索分数在置信度中的权重。
	ScoreWeight float64
	// IntentWeight 意图置信度在置信度中的权重。
	IntentWeight float64
	// MinConfidence 无检索结果时的置信度下限。
	MinConfidence float64
}

// SessionManager 管理会话生命周期并驱动消息处理流水线。
type SessionManager struct {
	store      store.SessionStore
	classifier *IntentClassifier
	retriever  *Retriever
	generator  *Generator
	cache      *AnswerCache
	background *pool.Pool
	config     *SessionConfig

	lastSweep atomic.Int64
}

// NewSessionManager 创建会话管理器实例。
func NewSessionManager(
	sessionStore store.SessionStore,
	classifier *IntentClassifier,
	retriever *Retriever,
	generator *Generator,
	cache *AnswerCache,
	background *pool.Pool,
	config *SessionConfig,
) *SessionManager {
	return &SessionManager{
		store:      sessionStore,
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		cache:      cache,
		background: background,
		config:     config,
	}
}

// CreateSession 创建新会话。欢迎语只出现在创建响应中，不写入消息历史。
func (m *SessionManager) CreateSession(ctx context.Context, userID string, metadata map[string]string) (*model.Session, error) {
	now := time.Now().UTC()
	session := &model.Session{
		ID:           id.NewUUID(),
		UserID:       userID,
		Metadata:     metadata,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, apierrors.ErrDatabase.WithCause(err)
	}
	session.Welcome = m.config.WelcomeMessage

	m.scheduleSweep()
	logger.Infow("会话已创建", "session_id", session.ID, "user_id", userID)
	return session, nil
}

// GetSession 获取会话。过期会话在读取时被惰性删除。
func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, apierrors.ErrChatSessionNotFound
		}
		return nil, apierrors.ErrDatabase.WithCause(err)
	}

	if session.Expired(time.Now().UTC(), m.config.Timeout) {
		if _, err := m.store.Delete(ctx, sessionID); err != nil {
			logger.Warnw("删除过期会话失败", "session_id", sessionID, "error", err.Error())
		}
		return nil, apierrors.ErrChatSessionNotFound
	}

	return session, nil
}

// ProcessMessage 处理一条用户消息：意图分类、知识检索、回答生成，
// 并将问答双方追加到会话历史。
func (m *SessionManager) ProcessMessage(ctx context.Context, sessionID, content string) (*model.ChatResponse, error) {
	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, apierrors.ErrChatSessionEnded
	}

	question := trimMessage(content)
	if question == "" {
		return nil, apierrors.ErrChatEmptyMessage
	}

	m.scheduleSweep()

	answer, err := m.answerQuestion(ctx, session, question)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	confidence := answer.Confidence
	sources := make([]model.ChunkSource, len(answer.Sources))
	copy(sources, answer.Sources)
	session.Messages = append(session.Messages,
		model.Message{
			ID:        id.NewULID(),
			SessionID: session.ID,
			Role:      model.RoleUser,
			Content:   question,
			Intent:    answer.Intent.Category,
			CreatedAt: now,
		},
		model.Message{
			ID:         id.NewULID(),
			SessionID:  session.ID,
			Role:       model.RoleAssistant,
			Content:    answer.Answer,
			Intent:     answer.Intent.Category,
			Confidence: &confidence,
			Sources:    sources,
			CreatedAt:  now,
		},
	)
	if len(session.Messages) > m.config.MaxHistory {
		session.Messages = session.Messages[len(session.Messages)-m.config.MaxHistory:]
	}
	session.LastActivity = now

	if err := m.store.Save(ctx, session); err != nil {
		return nil, apierrors.ErrDatabase.WithCause(err)
	}

	return &model.ChatResponse{
		SessionID:  session.ID,
		Answer:     answer.Answer,
		Intent:     answer.Intent,
		Confidence: answer.Confidence,
		Sources:    sources,
		Timestamp:  now,
	}, nil
}

// answerQuestion 执行问答流水线。首问命中缓存时跳过模型调用。
func (m *SessionManager) answerQuestion(ctx context.Context, session *model.Session, question string) (*CachedAnswer, error) {
	firstQuestion := !hasUserMessage(session.Messages)

	if firstQuestion && m.cache.Enabled() {
		cached := m.cache.Get(ctx, question)
		metrics.Get().RecordAnswerCache(cached != nil)
		if cached != nil {
			return cached, nil
		}
	}

	intent := m.classifier.Classify(ctx, question)

	chunks, err := m.retriever.Retrieve(ctx, question, intent.DocCategory())
	if err != nil {
		return nil, err
	}

	generated, _, err := m.generator.Generate(ctx, question, chunks, session.Messages)
	if err != nil {
		return nil, err
	}

	answer := &CachedAnswer{
		Answer:     generated,
		Intent:     intent,
		Confidence: m.confidence(intent, chunks),
		Sources:    chunkSources(chunks),
	}

	if firstQuestion {
		m.cache.Set(ctx, question, answer)
	}

	return answer, nil
}

// confidence 综合检索分数与意图置信度计算回答置信度。
// 无检索结果时固定为置信度下限，与意图置信度无关。
func (m *SessionManager) confidence(intent model.Intent, chunks []*model.ChunkSource) float64 {
	if len(chunks) == 0 {
		return m.config.MinConfidence
	}

	var sum float64
	for _, chunk := range chunks {
		sum += chunk.Score
	}
	mean := sum / float64(len(chunks))

	c := m.config.ScoreWeight*mean + m.config.IntentWeight*intent.Confidence
	if c > 1 {
		c = 1
	}
	return c
}

// EndSession 结束会话：标记非活跃并记录结束时间，历史仍可导出。
// 返回值表示本次调用是否真正结束了一个活跃会话；
// 已过期的会话在此处被顺带删除，但视为不存在。
func (m *SessionManager) EndSession(ctx context.Context, sessionID string) (bool, error) {
	session, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return false, nil
		}
		return false, apierrors.ErrDatabase.WithCause(err)
	}

	now := time.Now().UTC()
	if session.Expired(now, m.config.Timeout) {
		if _, err := m.store.Delete(ctx, sessionID); err != nil {
			return false, apierrors.ErrDatabase.WithCause(err)
		}
		return false, nil
	}
	if !session.Active {
		return false, nil
	}

	session.Active = false
	session.EndedAt = &now
	if err := m.store.Save(ctx, session); err != nil {
		return false, apierrors.ErrDatabase.WithCause(err)
	}

	logger.Infow("会话已结束", "session_id", sessionID)
	return true, nil
}

// Export 导出会话全文。
func (m *SessionManager) Export(ctx context.Context, sessionID string) (*model.SessionExport, error) {
	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.SessionExport{
		SessionID:    session.ID,
		UserID:       session.UserID,
		Metadata:     session.Metadata,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
		Active:       session.Active,
		EndedAt:      session.EndedAt,
		Messages:     session.Messages,
	}, nil
}

// ActiveSessions 返回当前会话数量。
func (m *SessionManager) ActiveSessions(ctx context.Context) (int64, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return 0, apierrors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

// SweepExpired 删除所有过期会话，返回删除数量。
func (m *SessionManager) SweepExpired(ctx context.Context) int {
	ids, err := m.store.ExpiredIDs(ctx, time.Now().UTC(), m.config.Timeout)
	if err != nil {
		logger.Warnw("查询过期会话失败", "error", err.Error())
		return 0
	}

	removed := 0
	for _, sessionID := range ids {
		existed, err := m.store.Delete(ctx, sessionID)
		if err != nil {
			logger.Warnw("删除过期会话失败", "session_id", sessionID, "error", err.Error())
			continue
		}
		if existed {
			removed++
		}
	}

	if removed > 0 {
		metrics.Get().RecordSessionsSwept(removed)
		logger.Infow("过期会话清理完成", "removed", removed)
	}
	return removed
}

// scheduleSweep 在后台池中触发一次过期清理，带最小间隔节流。
func (m *SessionManager) scheduleSweep() {
	if m.background == nil {
		return
	}

	now := time.Now().UnixNano()
	last := m.lastSweep.Load()
	if now-last < int64(sweepInterval) || !m.lastSweep.CompareAndSwap(last, now) {
		return
	}

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		m.SweepExpired(ctx)
	}
	if err := m.background.Submit(sweep); err != nil {
		// 池饱和时退化为同步清理。
		logger.Warnw("提交后台清理任务失败，改为同步执行", "error", err.Error())
		sweep()
	}
}

func trimMessage(content string) string {
	return strings.TrimSpace(content)
}

func hasUserMessage(messages []model.Message) bool {
	for i := range messages {
		if messages[i].Role == model.RoleUser {
			return true
		}
	}
	return false
}

func chunkSources(chunks []*model.ChunkSource) []model.ChunkSource {
	sources := make([]model.ChunkSource, len(chunks))
	for i, chunk := range chunks {
		sources[i] = *chunk
	}
	return sources
}
