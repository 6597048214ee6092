package model

import (
	"time"
)

// DocumentUpload describes an uploaded knowledge-base document.
type DocumentUpload struct {
	// Path is the temporary file on disk. It is removed after ingestion.
	Path string `json:"-"`

	Filename string   `json:"filename"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Size     int64    `json:"size"`
}

// IngestResult summarizes a completed document ingestion.
type IngestResult struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChunkSource represents source information for a retrieved chunk.
type ChunkSource struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// KnowledgeStats summarizes the knowledge-base state.
type KnowledgeStats struct {
	Collection   string `json:"collection"`
	ChunkCount   int64  `json:"chunk_count"`
	EmbedModel   string `json:"embed_model"`
	ChatModel    string `json:"chat_model"`
	CacheEnabled bool   `json:"cache_enabled"`
}
