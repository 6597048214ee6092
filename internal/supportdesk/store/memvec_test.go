package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memChunk(id, documentID, category string, embedding []float32) *Chunk {
	return &Chunk{
		ID:         id,
		DocumentID: documentID,
		Filename:   documentID + ".md",
		Title:      "Doc " + documentID,
		Category:   category,
		Content:    "content of " + id,
		UploadedAt: time.Now().UTC(),
		Embedding:  embedding,
	}
}

func TestMemoryVectorStoreSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore()
	require.NoError(t, s.EnsureCollection(ctx, &CollectionConfig{Name: "kb", Dimension: 2}))

	require.NoError(t, s.Upsert(ctx, "kb", []*Chunk{
		memChunk("doc-1_chunk_0", "doc-1", "billing", []float32{1, 0}),
		memChunk("doc-2_chunk_0", "doc-2", "billing", []float32{0.6, 0.8}),
		memChunk("doc-3_chunk_0", "doc-3", "technical", []float32{0, 1}),
	}))

	results, err := s.Search(ctx, "kb", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "doc-1_chunk_0", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "doc-2_chunk_0", results[1].ID)
	assert.InDelta(t, 0.6, results[1].Score, 1e-6)
	assert.Equal(t, "doc-3_chunk_0", results[2].ID)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)
}

func TestMemoryVectorStoreSearchFiltersAndCaps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore()
	require.NoError(t, s.EnsureCollection(ctx, &CollectionConfig{Name: "kb", Dimension: 2}))

	require.NoError(t, s.Upsert(ctx, "kb", []*Chunk{
		memChunk("doc-1_chunk_0", "doc-1", "billing", []float32{1, 0}),
		memChunk("doc-1_chunk_1", "doc-1", "billing", []float32{0.9, 0.1}),
		memChunk("doc-2_chunk_0", "doc-2", "technical", []float32{1, 0}),
	}))

	results, err := s.Search(ctx, "kb", []float32{1, 0}, 1, &SearchFilter{Category: "billing"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1_chunk_0", results[0].ID)
	assert.Equal(t, "billing", results[0].Category)
}

func TestMemoryVectorStoreUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore()
	require.NoError(t, s.EnsureCollection(ctx, &CollectionConfig{Name: "kb", Dimension: 2}))

	require.NoError(t, s.Upsert(ctx, "kb", []*Chunk{
		memChunk("doc-1_chunk_0", "doc-1", "billing", []float32{1, 0}),
	}))
	updated := memChunk("doc-1_chunk_0", "doc-1", "billing", []float32{0, 1})
	updated.Content = "revised content"
	require.NoError(t, s.Upsert(ctx, "kb", []*Chunk{updated}))

	count, err := s.GetStats(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	results, err := s.Search(ctx, "kb", []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "revised content", results[0].Content)
}
