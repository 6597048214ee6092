package biz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
)

func newTestIngestor(vs *fakeVectorStore, embedder *fakeEmbedder) *Ingestor {
	chunker := NewChunker(&ChunkerConfig{ChunkSize: 200, ChunkOverlap: 40, MinChunkLen: 20})
	return NewIngestor(vs, embedder, chunker, NewExtractorRegistry(), &IngestorConfig{
		Collection:   "support_kb",
		EmbeddingDim: 4,
	})
}

func writeUpload(t *testing.T, name, content string) *model.DocumentUpload {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &model.DocumentUpload{
		Path:     path,
		Filename: name,
		Title:    "Test Document",
		Category: "billing",
		Tags:     []string{"faq"},
		Size:     int64(len(content)),
	}
}

func testDocumentText() string {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "Paragraph %d describes how invoices are generated and delivered to customers. ", i)
	}
	return sb.String()
}

func TestIngestHappyPath(t *testing.T) {
	vs := &fakeVectorStore{}
	embedder := newFakeEmbedder()
	ing := newTestIngestor(vs, embedder)

	upload := writeUpload(t, "invoices.md", testDocumentText())
	result, err := ing.Ingest(context.Background(), upload)
	require.NoError(t, err)

	assert.NotEmpty(t, result.DocumentID)
	assert.Equal(t, "invoices.md", result.Filename)
	assert.Greater(t, result.ChunkCount, 1)

	// One batch embed call covering every chunk.
	calls := embedder.embedCalls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], result.ChunkCount)

	// One batch upsert with deterministic chunk IDs.
	require.Len(t, vs.upserts, 1)
	rows := vs.upserts[0]
	require.Len(t, rows, result.ChunkCount)
	for i, row := range rows {
		assert.Equal(t, fmt.Sprintf("%s_chunk_%d", result.DocumentID, i), row.ID)
		assert.Equal(t, result.DocumentID, row.DocumentID)
		assert.Equal(t, "billing", row.Category)
		assert.Equal(t, "Test Document", row.Title)
		assert.Equal(t, i, row.Index)
		assert.NotEmpty(t, row.Embedding)
	}

	// Temp file is cleaned up.
	_, statErr := os.Stat(upload.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestSingleChunkDocument(t *testing.T) {
	vs := &fakeVectorStore{}
	embedder := newFakeEmbedder()
	ing := newTestIngestor(vs, embedder)

	// Three sentences well below the chunk size collapse into one chunk.
	text := "Invoices are emailed monthly. Payment is due within 30 days. " +
		"Late fees apply after the due date."
	upload := writeUpload(t, "billing.txt", text)

	result, err := ing.Ingest(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)

	calls := embedder.embedCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)

	require.Len(t, vs.upserts, 1)
	rows := vs.upserts[0]
	require.Len(t, rows, 1)
	assert.Equal(t, result.DocumentID+"_chunk_0", rows[0].ID)
	assert.Equal(t, 0, rows[0].Index)
	assert.Equal(t, text, rows[0].Content)
}

func TestIngestEmptyDocument(t *testing.T) {
	ing := newTestIngestor(&fakeVectorStore{}, newFakeEmbedder())

	upload := writeUpload(t, "empty.txt", "   \n\t ")
	_, err := ing.Ingest(context.Background(), upload)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDocEmpty.Code))

	_, statErr := os.Stat(upload.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestAllChunksTooShort(t *testing.T) {
	ing := newTestIngestor(&fakeVectorStore{}, newFakeEmbedder())

	upload := writeUpload(t, "tiny.txt", "Hi there.")
	_, err := ing.Ingest(context.Background(), upload)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDocEmpty.Code))
}

func TestIngestUnsupportedExtension(t *testing.T) {
	ing := newTestIngestor(&fakeVectorStore{}, newFakeEmbedder())

	upload := writeUpload(t, "report.pdf", testDocumentText())
	_, err := ing.Ingest(context.Background(), upload)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDocExtractionFailed.Code))

	// Cleanup also happens on failure.
	_, statErr := os.Stat(upload.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestEmbedFailure(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.embedErr = fmt.Errorf("quota exceeded")
	ing := newTestIngestor(&fakeVectorStore{}, embedder)

	upload := writeUpload(t, "doc.md", testDocumentText())
	_, err := ing.Ingest(context.Background(), upload)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrEmbeddingFailed.Code))
}

func TestIngestEmbeddingCountMismatch(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.dropLast = true
	ing := newTestIngestor(&fakeVectorStore{}, embedder)

	upload := writeUpload(t, "doc.md", testDocumentText())
	_, err := ing.Ingest(context.Background(), upload)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrLLMInvalidOutput.Code))
}

func TestIngestUpsertFailure(t *testing.T) {
	vs := &fakeVectorStore{upsertErr: fmt.Errorf("collection not loaded")}
	ing := newTestIngestor(vs, newFakeEmbedder())

	upload := writeUpload(t, "doc.md", testDocumentText())
	_, err := ing.Ingest(context.Background(), upload)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrIndexFailed.Code))
}

func TestDeleteDocumentUnsupported(t *testing.T) {
	ing := newTestIngestor(&fakeVectorStore{}, newFakeEmbedder())

	err := ing.DeleteDocument(context.Background(), "doc-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrDocDeleteUnsupported.Code))
}

func TestExtractorRegistrySupported(t *testing.T) {
	r := NewExtractorRegistry()

	assert.True(t, r.Supported("notes.txt"))
	assert.True(t, r.Supported("README.MD"))
	assert.True(t, r.Supported("guide.markdown"))
	assert.False(t, r.Supported("slides.pptx"))
}
