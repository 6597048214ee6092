// Package metrics 提供支持聊天服务的业务指标收集。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ChatMetrics 支持聊天服务业务指标。
type ChatMetrics struct {
	// 消息处理指标
	messagesTotal    uint64 // 总消息处理次数
	messagesErrors   uint64 // 消息处理错误次数
	answerCacheHits  uint64 // 回答缓存命中次数
	answerCacheMiss  uint64 // 回答缓存未命中次数
	messagesDuration float64

	// 意图分类指标（按类别计数）
	intentMu        sync.Mutex
	intentCounts    map[string]uint64
	intentFallbacks uint64 // 回退到 general 的次数

	// 检索指标
	retrievalTotal  uint64
	retrievalEmpty  uint64 // 空结果检索次数
	retrievalErrors uint64

	// 文档摄取指标
	documentsIngested uint64
	chunksIngested    uint64
	ingestErrors      uint64

	// 会话指标
	sessionsCreated uint64
	sessionsEnded   uint64
	sessionsSwept   uint64 // 过期清理的会话数

	durationMu sync.Mutex
}

var (
	global *ChatMetrics
	once   sync.Once
)

// Get 返回全局指标实例。
func Get() *ChatMetrics {
	once.Do(func() {
		global = New()
	})
	return global
}

// New 创建新的指标收集器。
func New() *ChatMetrics {
	return &ChatMetrics{intentCounts: make(map[string]uint64)}
}

// RecordMessage 记录一次消息处理。
func (m *ChatMetrics) RecordMessage(duration time.Duration, err error) {
	atomic.AddUint64(&m.messagesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.messagesErrors, 1)
		return
	}
	m.durationMu.Lock()
	m.messagesDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordAnswerCache 记录回答缓存命中情况。
func (m *ChatMetrics) RecordAnswerCache(hit bool) {
	if hit {
		atomic.AddUint64(&m.answerCacheHits, 1)
	} else {
		atomic.AddUint64(&m.answerCacheMiss, 1)
	}
}

// RecordIntent 记录一次意图分类结果。
func (m *ChatMetrics) RecordIntent(category string, fallback bool) {
	m.intentMu.Lock()
	m.intentCounts[category]++
	m.intentMu.Unlock()
	if fallback {
		atomic.AddUint64(&m.intentFallbacks, 1)
	}
}

// RecordRetrieval 记录一次知识库检索。
func (m *ChatMetrics) RecordRetrieval(results int, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}
	if results == 0 {
		atomic.AddUint64(&m.retrievalEmpty, 1)
	}
}

// RecordIngest 记录一次文档摄取。
func (m *ChatMetrics) RecordIngest(chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIngested, 1)
	atomic.AddUint64(&m.chunksIngested, uint64(chunks))
}

// RecordSessionCreated 记录会话创建。
func (m *ChatMetrics) RecordSessionCreated() {
	atomic.AddUint64(&m.sessionsCreated, 1)
}

// RecordSessionEnded 记录会话结束。
func (m *ChatMetrics) RecordSessionEnded() {
	atomic.AddUint64(&m.sessionsEnded, 1)
}

// RecordSessionsSwept 记录过期清理的会话数。
func (m *ChatMetrics) RecordSessionsSwept(n int) {
	if n > 0 {
		atomic.AddUint64(&m.sessionsSwept, uint64(n))
	}
}

// Stats 返回当前指标快照。
func (m *ChatMetrics) Stats() map[string]any {
	m.durationMu.Lock()
	duration := m.messagesDuration
	m.durationMu.Unlock()

	m.intentMu.Lock()
	intents := make(map[string]uint64, len(m.intentCounts))
	for k, v := range m.intentCounts {
		intents[k] = v
	}
	m.intentMu.Unlock()

	return map[string]any{
		"messages": map[string]any{
			"total":            atomic.LoadUint64(&m.messagesTotal),
			"errors":           atomic.LoadUint64(&m.messagesErrors),
			"duration_seconds": duration,
		},
		"answer_cache": map[string]any{
			"hits":   atomic.LoadUint64(&m.answerCacheHits),
			"misses": atomic.LoadUint64(&m.answerCacheMiss),
		},
		"intents": intents,
		"retrieval": map[string]any{
			"total":  atomic.LoadUint64(&m.retrievalTotal),
			"empty":  atomic.LoadUint64(&m.retrievalEmpty),
			"errors": atomic.LoadUint64(&m.retrievalErrors),
		},
		"ingest": map[string]any{
			"documents": atomic.LoadUint64(&m.documentsIngested),
			"chunks":    atomic.LoadUint64(&m.chunksIngested),
			"errors":    atomic.LoadUint64(&m.ingestErrors),
		},
		"sessions": map[string]any{
			"created": atomic.LoadUint64(&m.sessionsCreated),
			"ended":   atomic.LoadUint64(&m.sessionsEnded),
			"swept":   atomic.LoadUint64(&m.sessionsSwept),
		},
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *ChatMetrics) Export(namespace string) string {
	var sb strings.Builder

	counter := func(name, help string, value uint64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", namespace, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s counter\n", namespace, name)
		fmt.Fprintf(&sb, "%s_%s %d\n\n", namespace, name, value)
	}

	counter("messages_total", "Total number of processed chat messages.", atomic.LoadUint64(&m.messagesTotal))
	counter("messages_errors_total", "Number of failed chat messages.", atomic.LoadUint64(&m.messagesErrors))

	m.durationMu.Lock()
	duration := m.messagesDuration
	m.durationMu.Unlock()
	fmt.Fprintf(&sb, "# HELP %s_messages_duration_seconds_total Total message processing duration.\n", namespace)
	fmt.Fprintf(&sb, "# TYPE %s_messages_duration_seconds_total counter\n", namespace)
	fmt.Fprintf(&sb, "%s_messages_duration_seconds_total %.6f\n\n", namespace, duration)

	counter("answer_cache_hits_total", "Number of answer cache hits.", atomic.LoadUint64(&m.answerCacheHits))
	counter("answer_cache_misses_total", "Number of answer cache misses.", atomic.LoadUint64(&m.answerCacheMiss))

	m.intentMu.Lock()
	intentNames := make([]string, 0, len(m.intentCounts))
	for name := range m.intentCounts {
		intentNames = append(intentNames, name)
	}
	sort.Strings(intentNames)
	fmt.Fprintf(&sb, "# HELP %s_intents_total Number of classified intents by category.\n", namespace)
	fmt.Fprintf(&sb, "# TYPE %s_intents_total counter\n", namespace)
	for _, name := range intentNames {
		fmt.Fprintf(&sb, "%s_intents_total{category=%q} %d\n", namespace, name, m.intentCounts[name])
	}
	m.intentMu.Unlock()
	sb.WriteString("\n")

	counter("intent_fallbacks_total", "Number of intent classifications that fell back to general.", atomic.LoadUint64(&m.intentFallbacks))

	counter("retrieval_total", "Total number of knowledge base retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	counter("retrieval_empty_total", "Number of retrievals with no results above the score floor.", atomic.LoadUint64(&m.retrievalEmpty))
	counter("retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))

	counter("documents_ingested_total", "Total documents ingested.", atomic.LoadUint64(&m.documentsIngested))
	counter("chunks_ingested_total", "Total chunks written to the vector index.", atomic.LoadUint64(&m.chunksIngested))
	counter("ingest_errors_total", "Number of ingestion errors.", atomic.LoadUint64(&m.ingestErrors))

	counter("sessions_created_total", "Total sessions created.", atomic.LoadUint64(&m.sessionsCreated))
	counter("sessions_ended_total", "Total sessions explicitly ended.", atomic.LoadUint64(&m.sessionsEnded))
	counter("sessions_swept_total", "Total sessions removed by expiry sweeps.", atomic.LoadUint64(&m.sessionsSwept))

	return sb.String()
}
