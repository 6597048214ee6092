package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/supportdesk/internal/pkg/textutil"
)

// MemoryVectorStore 进程内向量存储，暴力余弦检索。
// 用于本地开发与测试，不依赖外部 Milvus 实例。
type MemoryVectorStore struct {
	mu     sync.RWMutex
	chunks map[string]map[string]*Chunk
}

// NewMemoryVectorStore 创建内存向量存储实例。
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{chunks: make(map[string]map[string]*Chunk)}
}

// EnsureCollection 创建集合（已存在时为空操作）。
func (s *MemoryVectorStore) EnsureCollection(_ context.Context, config *CollectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[config.Name]; !ok {
		s.chunks[config.Name] = make(map[string]*Chunk)
	}
	return nil
}

// Upsert 批量写入文档块，主键相同的块被替换。
func (s *MemoryVectorStore) Upsert(_ context.Context, collection string, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.chunks[collection]
	if !ok {
		coll = make(map[string]*Chunk)
		s.chunks[collection] = coll
	}
	for _, chunk := range chunks {
		cp := *chunk
		coll[chunk.ID] = &cp
	}
	return nil
}

// Search 余弦相似度全量扫描，结果按相似度降序。
func (s *MemoryVectorStore) Search(_ context.Context, collection string, embedding []float32, topK int, filter *SearchFilter) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*SearchResult, 0, topK)
	for _, chunk := range s.chunks[collection] {
		if filter != nil && filter.Category != "" && chunk.Category != filter.Category {
			continue
		}
		results = append(results, &SearchResult{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Filename:   chunk.Filename,
			Title:      chunk.Title,
			Category:   chunk.Category,
			Content:    chunk.Content,
			Score:      textutil.CosineSimilarity(embedding, chunk.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// GetStats 返回集合中的块数量。
func (s *MemoryVectorStore) GetStats(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks[collection])), nil
}

// Close 释放全部数据。
func (s *MemoryVectorStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]map[string]*Chunk)
	return nil
}

var _ VectorStore = (*MemoryVectorStore)(nil)
