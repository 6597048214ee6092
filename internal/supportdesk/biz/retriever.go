package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/supportdesk/store"
	"github.com/kart-io/supportdesk/pkg/llm"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// Collection 集合名称。
	Collection string
	// TopK 返回的候选数量。
	TopK int
	// MinScore 相似度下限，低于该分数的结果被过滤。
	MinScore float64
}

// Retriever 负责知识库检索。
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	config   *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	return &Retriever{
		store:    vectorStore,
		embedder: embedder,
		config:   config,
	}
}

// Retrieve 检索与查询相关的文档块。category 非空时只检索该分类。
// 结果保持存储返回的相似度降序，空结果是合法输出。
func (r *Retriever) Retrieve(ctx context.Context, query string, category string) ([]*model.ChunkSource, error) {
	return r.RetrieveWithScore(ctx, query, category, r.config.MinScore)
}

// RetrieveWithScore 同 Retrieve，但使用调用方指定的相似度下限。
func (r *Retriever) RetrieveWithScore(ctx context.Context, query, category string, minScore float64) ([]*model.ChunkSource, error) {
	embedding, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}

	var filter *store.SearchFilter
	if category != "" {
		filter = &store.SearchFilter{Category: category}
	}

	results, err := r.store.Search(ctx, r.config.Collection, embedding, r.config.TopK, filter)
	if err != nil {
		return nil, errors.ErrKnowledgeUnavailable.WithCause(err)
	}

	sources := make([]*model.ChunkSource, 0, len(results))
	for _, res := range results {
		if res.Score < minScore {
			continue
		}
		sources = append(sources, &model.ChunkSource{
			ChunkID:    res.ID,
			DocumentID: res.DocumentID,
			Filename:   res.Filename,
			Title:      res.Title,
			Category:   res.Category,
			Content:    res.Content,
			Score:      res.Score,
		})
	}

	logger.Debugw("知识库检索完成",
		"category", category,
		"candidates", len(results),
		"kept", len(sources),
	)

	return sources, nil
}
