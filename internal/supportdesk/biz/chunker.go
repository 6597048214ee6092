package biz

import (
	"strings"

	"github.com/kart-io/supportdesk/internal/pkg/textutil"
)

// ChunkerConfig 文本分块配置。
type ChunkerConfig struct {
	// ChunkSize 目标块大小（字符数）。
	ChunkSize int
	// ChunkOverlap 相邻块之间的重叠量（字符数）。
	ChunkOverlap int
	// MinChunkLen 低于该长度的块被丢弃。
	MinChunkLen int
}

// Chunker 按句子边界将文档文本切分为带重叠的块。
type Chunker struct {
	config *ChunkerConfig
}

// NewChunker 创建分块器实例。
func NewChunker(config *ChunkerConfig) *Chunker {
	return &Chunker{config: config}
}

// Split 将文本切分为块。句子永不跨块截断，超长的单句独立成块。
// 每个新块以前一块结尾的若干个词开头，保留跨块语境。
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := textutil.SplitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	// 按平均词长估算重叠词数。
	overlapWords := c.config.ChunkOverlap / 6

	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if len(chunk) >= c.config.MinChunkLen {
			chunks = append(chunks, chunk)
		}
		if chunk != "" && overlapWords > 0 {
			if seed := textutil.TrailingWords(chunk, overlapWords); seed != "" {
				current.WriteString(seed)
			}
		}
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.config.ChunkSize {
			flush()
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		chunk := strings.TrimSpace(current.String())
		if len(chunk) >= c.config.MinChunkLen {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}
