// Package store provides the storage interfaces and implementations for the
// support-desk service: the vector index holding knowledge-base chunks and
// the session store holding conversations.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound 会话不存在。
var ErrSessionNotFound = errors.New("session not found")

// Chunk 表示写入向量索引的文档块。
type Chunk struct {
	// ID 文档块 ID，形如 {documentID}_chunk_{index}。
	ID string
	// DocumentID 所属文档 ID。
	DocumentID string
	// Filename 原始文件名。
	Filename string
	// Title 文档标题。
	Title string
	// Category 文档分类。
	Category string
	// Tags 文档标签。
	Tags []string
	// Content 文档块全文。
	Content string
	// Index 文档内块序号。
	Index int
	// FileSize 原始文件大小（字节）。
	FileSize int64
	// UploadedAt 上传时间。
	UploadedAt time.Time
	// Embedding 嵌入向量。
	Embedding []float32
}

// SearchResult 表示检索结果。
type SearchResult struct {
	// ID 文档块 ID。
	ID string
	// DocumentID 所属文档 ID。
	DocumentID string
	// Filename 原始文件名。
	Filename string
	// Title 文档标题。
	Title string
	// Category 文档分类。
	Category string
	// Content 文档块全文。
	Content string
	// Score 余弦相似度分数，范围 [-1, 1]。
	Score float64
}

// CollectionConfig 集合配置。
type CollectionConfig struct {
	// Name 集合名称。
	Name string
	// Description 集合描述。
	Description string
	// Dimension 向量维度。
	Dimension int
}

// SearchFilter 检索过滤条件。
type SearchFilter struct {
	// Category 为空时不过滤分类。
	Category string
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// EnsureCollection 创建集合（已存在时为空操作）并等待其就绪。
	EnsureCollection(ctx context.Context, config *CollectionConfig) error

	// Upsert 批量写入文档块，主键相同的块被替换。
	Upsert(ctx context.Context, collection string, chunks []*Chunk) error

	// Search 向量相似度搜索，结果按相似度降序。
	Search(ctx context.Context, collection string, embedding []float32, topK int, filter *SearchFilter) ([]*SearchResult, error)

	// GetStats 获取集合统计信息。
	GetStats(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
