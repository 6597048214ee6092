package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/supportdesk/pkg/component/milvus"
)

// chunkOutputFields 检索时返回的元数据字段。
var chunkOutputFields = []string{"document_id", "filename", "title", "category", "content"}

// MilvusStore 基于 Milvus 的向量存储实现。
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore creates a vector store backed by the given Milvus client.
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection 创建知识库集合并等待其可检索。
func (s *MilvusStore) EnsureCollection(ctx context.Context, config *CollectionConfig) error {
	schema := &milvus.CollectionSchema{
		Name:        config.Name,
		Description: config.Description,
		Dimension:   config.Dimension,
		IDMaxLen:    128,
		MetaFields: []milvus.MetaField{
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "filename", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "title", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "category", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "tags", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			{Name: "chunk_length", DataType: entity.FieldTypeInt64},
			{Name: "file_size", DataType: entity.FieldTypeInt64},
			{Name: "uploaded_at", DataType: entity.FieldTypeVarChar, MaxLen: 64},
		},
	}

	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return err
	}
	return s.client.WaitUntilReady(ctx, config.Name)
}

// Upsert 批量写入文档块。同一文档重新摄取时主键相同，旧块被覆盖。
func (s *MilvusStore) Upsert(ctx context.Context, collection string, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	n := len(chunks)
	data := &milvus.InsertData{
		IDs:        make([]string, n),
		Embeddings: make([][]float32, n),
		Metadata: map[string][]any{
			"document_id":  make([]any, n),
			"filename":     make([]any, n),
			"title":        make([]any, n),
			"category":     make([]any, n),
			"tags":         make([]any, n),
			"content":      make([]any, n),
			"chunk_index":  make([]any, n),
			"chunk_length": make([]any, n),
			"file_size":    make([]any, n),
			"uploaded_at":  make([]any, n),
		},
	}

	for i, chunk := range chunks {
		data.IDs[i] = chunk.ID
		data.Embeddings[i] = chunk.Embedding
		data.Metadata["document_id"][i] = chunk.DocumentID
		data.Metadata["filename"][i] = chunk.Filename
		data.Metadata["title"][i] = chunk.Title
		data.Metadata["category"][i] = chunk.Category
		data.Metadata["tags"][i] = strings.Join(chunk.Tags, ",")
		data.Metadata["content"][i] = chunk.Content
		data.Metadata["chunk_index"][i] = int64(chunk.Index)
		data.Metadata["chunk_length"][i] = int64(len(chunk.Content))
		data.Metadata["file_size"][i] = chunk.FileSize
		data.Metadata["uploaded_at"][i] = chunk.UploadedAt.UTC().Format(time.RFC3339)
	}

	return s.client.Upsert(ctx, collection, data)
}

// Search 向量相似度搜索。过滤条件为空时检索全库。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int, filter *SearchFilter) ([]*SearchResult, error) {
	expr := ""
	if filter != nil && filter.Category != "" {
		expr = fmt.Sprintf("category == %q", filter.Category)
	}

	hits, err := s.client.Search(ctx, collection, embedding, topK, expr, chunkOutputFields)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(hits))
	for _, hit := range hits {
		result := &SearchResult{
			ID:    hit.ID,
			Score: float64(hit.Score),
		}
		if v, ok := hit.Metadata["document_id"].(string); ok {
			result.DocumentID = v
		}
		if v, ok := hit.Metadata["filename"].(string); ok {
			result.Filename = v
		}
		if v, ok := hit.Metadata["title"].(string); ok {
			result.Title = v
		}
		if v, ok := hit.Metadata["category"].(string); ok {
			result.Category = v
		}
		if v, ok := hit.Metadata["content"].(string); ok {
			result.Content = v
		}
		results = append(results, result)
	}

	return results, nil
}

// GetStats 返回集合中的块数量。
func (s *MilvusStore) GetStats(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// Close 关闭底层 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)
