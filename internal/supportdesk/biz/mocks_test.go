package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/supportdesk/internal/supportdesk/store"
	"github.com/kart-io/supportdesk/pkg/llm"
)

// fakeEmbedder returns deterministic vectors and records its calls.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     [][]string
	embedErr  error
	dimension int
	dropLast  bool
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dimension: 4}
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, texts)
	f.mu.Unlock()

	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dimension)
		v[0] = float32(len(texts[i]))
		vectors[i] = v
	}
	if f.dropLast && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake-embed" }

func (f *fakeEmbedder) embedCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// fakeChat serves scripted chat and generate responses.
type fakeChat struct {
	mu sync.Mutex

	chatReply string
	chatErr   error
	chatCalls [][]llm.Message

	generateReply string
	generateErr   error
	lastPrompt    string
	lastSystem    string
	generateCalls int
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, messages)
	f.mu.Unlock()
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.chatReply, nil
}

func (f *fakeChat) Generate(_ context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	f.generateCalls++
	f.mu.Unlock()
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &llm.GenerateResponse{
		Content:    f.generateReply,
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

// fakeVectorStore records upserts and serves scripted search results.
type fakeVectorStore struct {
	mu sync.Mutex

	upserts    [][]*store.Chunk
	results    []*store.SearchResult
	searchErr  error
	upsertErr  error
	lastFilter *store.SearchFilter
	lastTopK   int
	rowCount   int64
}

func (f *fakeVectorStore) EnsureCollection(context.Context, *store.CollectionConfig) error {
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, _ string, chunks []*store.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, chunks)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ string, _ []float32, topK int, filter *store.SearchFilter) ([]*store.SearchResult, error) {
	f.mu.Lock()
	f.lastFilter = filter
	f.lastTopK = topK
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeVectorStore) GetStats(context.Context, string) (int64, error) {
	return f.rowCount, nil
}

func (f *fakeVectorStore) Close(context.Context) error { return nil }

var _ store.VectorStore = (*fakeVectorStore)(nil)

func searchResult(i int, category string, score float64) *store.SearchResult {
	return &store.SearchResult{
		ID:         fmt.Sprintf("doc-1_chunk_%d", i),
		DocumentID: "doc-1",
		Filename:   "faq.md",
		Title:      "Billing FAQ",
		Category:   category,
		Content:    fmt.Sprintf("chunk content %d", i),
		Score:      score,
	}
}

func testSessionConfig() *SessionConfig {
	return &SessionConfig{
		Timeout:        30 * time.Minute,
		MaxHistory:     50,
		WelcomeMessage: "Hello! How can I help you today?",
		ScoreWeight:    0.7,
		IntentWeight:   0.3,
		MinConfidence:  0.1,
	}
}
