package biz

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/supportdesk/store"
	"github.com/kart-io/supportdesk/pkg/llm"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
	"github.com/kart-io/supportdesk/pkg/utils/id"
)

// IngestorConfig 文档摄取配置。
type IngestorConfig struct {
	// Collection 知识库集合名称。
	Collection string
	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int
}

// Ingestor 负责文档摄取：提取文本、分块、向量化并写入知识库。
type Ingestor struct {
	store      store.VectorStore
	embedder   llm.EmbeddingProvider
	chunker    *Chunker
	extractors *ExtractorRegistry
	config     *IngestorConfig
}

// NewIngestor 创建文档摄取器实例。
func NewIngestor(
	vectorStore store.VectorStore,
	embedder llm.EmbeddingProvider,
	chunker *Chunker,
	extractors *ExtractorRegistry,
	config *IngestorConfig,
) *Ingestor {
	return &Ingestor{
		store:      vectorStore,
		embedder:   embedder,
		chunker:    chunker,
		extractors: extractors,
		config:     config,
	}
}

// EnsureReady 创建知识库集合并等待其可检索。
func (ing *Ingestor) EnsureReady(ctx context.Context) error {
	config := &store.CollectionConfig{
		Name:        ing.config.Collection,
		Description: "Customer support knowledge base",
		Dimension:   ing.config.EmbeddingDim,
	}
	if err := ing.store.EnsureCollection(ctx, config); err != nil {
		return errors.ErrIndexNotReady.WithCause(err)
	}
	return nil
}

// Ingest 摄取一篇文档。临时文件无论成败都会被清理。
// 摄取不是事务性的：向量写入失败时已提取的内容不会回滚。
func (ing *Ingestor) Ingest(ctx context.Context, upload *model.DocumentUpload) (*model.IngestResult, error) {
	defer func() {
		if upload.Path != "" {
			if err := os.Remove(upload.Path); err != nil && !os.IsNotExist(err) {
				logger.Warnw("清理临时文件失败", "path", upload.Path, "error", err.Error())
			}
		}
	}()

	text, err := ing.extractors.Extract(upload.Path, upload.Filename)
	if err != nil {
		return nil, errors.ErrDocExtractionFailed.WithCause(err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.ErrDocEmpty
	}

	chunks := ing.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, errors.ErrDocEmpty
	}

	// 单次批量嵌入，避免每块一次调用。
	embeddings, err := ing.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}
	if len(embeddings) != len(chunks) {
		return nil, errors.ErrLLMInvalidOutput.WithCause(
			fmt.Errorf("embedding count %d does not match chunk count %d", len(embeddings), len(chunks)))
	}

	docID := id.NewUUID()
	uploadedAt := time.Now().UTC()

	rows := make([]*store.Chunk, len(chunks))
	for i, content := range chunks {
		rows[i] = &store.Chunk{
			ID:         fmt.Sprintf("%s_chunk_%d", docID, i),
			DocumentID: docID,
			Filename:   upload.Filename,
			Title:      upload.Title,
			Category:   upload.Category,
			Tags:       upload.Tags,
			Content:    content,
			Index:      i,
			FileSize:   upload.Size,
			UploadedAt: uploadedAt,
			Embedding:  embeddings[i],
		}
	}

	// 单次批量写入。
	if err := ing.store.Upsert(ctx, ing.config.Collection, rows); err != nil {
		return nil, errors.ErrIndexFailed.WithCause(err)
	}

	logger.Infow("文档摄取完成",
		"document_id", docID,
		"filename", upload.Filename,
		"category", upload.Category,
		"chunks", len(chunks),
	)

	return &model.IngestResult{
		DocumentID: docID,
		Filename:   upload.Filename,
		ChunkCount: len(chunks),
		UploadedAt: uploadedAt,
	}, nil
}

// DeleteDocument 删除文档。
// TODO: 按 document_id 过滤删除块并刷新集合，目前尚未开放。
func (ing *Ingestor) DeleteDocument(_ context.Context, documentID string) error {
	logger.Warnw("拒绝删除文档请求", "document_id", documentID)
	return errors.ErrDocDeleteUnsupported
}

// Stats 返回知识库统计信息。
func (ing *Ingestor) Stats(ctx context.Context) (int64, error) {
	count, err := ing.store.GetStats(ctx, ing.config.Collection)
	if err != nil {
		return 0, errors.ErrKnowledgeUnavailable.WithCause(err)
	}
	return count, nil
}
