package biz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinChunkLen:  50,
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(testChunkerConfig())

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestChunkerShortTextDiscarded(t *testing.T) {
	c := NewChunker(testChunkerConfig())

	// Below the minimum chunk length, nothing survives.
	assert.Empty(t, c.Split("Too short."))
}

func TestChunkerSingleChunk(t *testing.T) {
	c := NewChunker(testChunkerConfig())

	text := "Our billing cycle starts on the first day of each month. Invoices are sent by email within two business days."
	chunks := c.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkerRespectsSentenceBoundaries(t *testing.T) {
	c := NewChunker(testChunkerConfig())

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Sentence number %d explains one aspect of the refund policy in reasonable detail for customers. ", i)
	}

	chunks := c.Split(sb.String())
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		// Every chunk ends on a sentence terminator, never mid-sentence.
		assert.True(t, strings.HasSuffix(chunk, "."), "chunk should end at a sentence boundary: %q", chunk)
		assert.GreaterOrEqual(t, len(chunk), 50)
	}
}

func TestChunkerOverlapSeedsNextChunk(t *testing.T) {
	c := NewChunker(testChunkerConfig())

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Sentence number %d explains one aspect of the refund policy in reasonable detail for customers. ", i)
	}

	chunks := c.Split(sb.String())
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		words := strings.Fields(chunks[i-1])
		lastWord := words[len(words)-1]
		assert.True(t, strings.Contains(chunks[i], lastWord),
			"chunk %d should start with trailing words of chunk %d", i, i-1)
	}
}

func TestChunkerOversizedSentenceKeptWhole(t *testing.T) {
	c := NewChunker(testChunkerConfig())

	long := strings.Repeat("word ", 300) // ~1500 chars, no terminator until the end
	text := strings.TrimSpace(long) + "."
	chunks := c.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkerChineseSentences(t *testing.T) {
	c := NewChunker(testChunkerConfig())

	text := strings.Repeat("退款申请需要在收到商品后的三十天内提交，客服团队会在两个工作日内处理您的请求。", 3)
	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[0], "。"))
}
