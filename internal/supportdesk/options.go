// Package supportdesk provides the customer support chat service.
package supportdesk

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/supportdesk/pkg/app"
	httpopts "github.com/kart-io/supportdesk/pkg/options/http"
	llmopts "github.com/kart-io/supportdesk/pkg/options/llm"
	logopts "github.com/kart-io/supportdesk/pkg/options/logger"
	milvusopts "github.com/kart-io/supportdesk/pkg/options/milvus"
	redisopts "github.com/kart-io/supportdesk/pkg/options/redis"
)

// Options contains all support-desk service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains vector database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// Knowledge contains chunking and retrieval configuration.
	Knowledge *KnowledgeOptions `json:"knowledge" mapstructure:"knowledge"`

	// Session contains session lifecycle configuration.
	Session *SessionOptions `json:"session" mapstructure:"session"`

	// Generation contains answer generation configuration.
	Generation *GenerationOptions `json:"generation" mapstructure:"generation"`

	// Cache contains answer cache configuration.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`

	// Store contains session store configuration.
	Store *StoreOptions `json:"store" mapstructure:"store"`
}

// KnowledgeOptions contains chunking and retrieval configuration.
type KnowledgeOptions struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the approximate character overlap carried between chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// MinChunkLen is the minimum chunk length; shorter chunks are discarded.
	MinChunkLen int `json:"min-chunk-len" mapstructure:"min-chunk-len"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// TopK is the number of chunks retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore is the similarity floor for chat retrieval.
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// SearchMinScore is the similarity floor for direct knowledge-base search.
	SearchMinScore float64 `json:"search-min-score" mapstructure:"search-min-score"`

	// DataDir holds temporary upload files during ingestion.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// VectorDriver selects the vector index backend (milvus, memory).
	// The memory backend keeps chunks in process and is meant for
	// local development and tests.
	VectorDriver string `json:"vector-driver" mapstructure:"vector-driver"`
}

// SessionOptions contains session lifecycle configuration.
type SessionOptions struct {
	// Timeout is the idle duration after which a session expires.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxHistory caps the number of messages retained per session.
	MaxHistory int `json:"max-history" mapstructure:"max-history"`

	// HistoryWindow is the number of recent messages passed to generation.
	HistoryWindow int `json:"history-window" mapstructure:"history-window"`

	// WelcomeMessage is returned on session creation.
	WelcomeMessage string `json:"welcome-message" mapstructure:"welcome-message"`

	// ScoreWeight weights mean retrieval score in answer confidence.
	ScoreWeight float64 `json:"score-weight" mapstructure:"score-weight"`

	// IntentWeight weights intent confidence in answer confidence.
	IntentWeight float64 `json:"intent-weight" mapstructure:"intent-weight"`

	// MinConfidence is the confidence floor when no chunks are retrieved.
	MinConfidence float64 `json:"min-confidence" mapstructure:"min-confidence"`
}

// GenerationOptions contains answer generation configuration.
type GenerationOptions struct {
	// MaxTokens caps the generated answer length.
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Temperature controls generation randomness.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// Policy is the behavioral instruction prepended to every generation.
	Policy string `json:"policy" mapstructure:"policy"`
}

// CacheOptions 回答缓存配置。
type CacheOptions struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// StoreOptions contains session store configuration.
type StoreOptions struct {
	// Driver selects the session store backend (memory, sqlite).
	Driver string `json:"driver" mapstructure:"driver"`

	// DSN is the database source name for persistent backends.
	DSN string `json:"dsn" mapstructure:"dsn"`
}

// defaultPolicy is the behavioral instruction for the support assistant.
const defaultPolicy = `You are a customer support assistant. Answer using only the
knowledge base excerpts provided below. Be concise and polite, and stay on customer
support topics. Use the conversation history for continuity. If the excerpts do not
contain the answer, say you don't know and suggest contacting a human agent.
Never invent product details, prices, or policies.`

const defaultWelcome = "Hello! I'm your support assistant. How can I help you today?"

// NewKnowledgeOptions creates new KnowledgeOptions with defaults.
func NewKnowledgeOptions() *KnowledgeOptions {
	return &KnowledgeOptions{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		MinChunkLen:    50,
		Collection:     "support_kb",
		EmbeddingDim:   1536, // text-embedding-3-small dimension
		TopK:           3,
		MinScore:       0.7,
		SearchMinScore: 0.6,
		DataDir:        "_output/uploads",
		VectorDriver:   "milvus",
	}
}

// NewSessionOptions creates new SessionOptions with defaults.
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		Timeout:        30 * time.Minute,
		MaxHistory:     50,
		HistoryWindow:  10,
		WelcomeMessage: defaultWelcome,
		ScoreWeight:    0.7,
		IntentWeight:   0.3,
		MinConfidence:  0.1,
	}
}

// NewGenerationOptions creates new GenerationOptions with defaults.
func NewGenerationOptions() *GenerationOptions {
	return &GenerationOptions{
		MaxTokens:   500,
		Temperature: 0.3,
		Policy:      defaultPolicy,
	}
}

// NewCacheOptions 创建默认缓存配置。
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "supportdesk:answer:",
		Redis:     redisopts.NewOptions(),
	}
}

// NewStoreOptions creates new StoreOptions with defaults.
func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Driver: "memory",
		DSN:    "_output/supportdesk.db",
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = ":8082"

	return &Options{
		HTTP:       httpOpts,
		Log:        logopts.NewOptions(),
		Milvus:     milvusopts.NewOptions(),
		Embedding:  llmopts.NewEmbeddingOptions(),
		Chat:       llmopts.NewChatOptions(),
		Knowledge:  NewKnowledgeOptions(),
		Session:    NewSessionOptions(),
		Generation: NewGenerationOptions(),
		Cache:      NewCacheOptions(),
		Store:      NewStoreOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.addEmbeddingFlags(fs)
	o.addChatFlags(fs)
	o.addKnowledgeFlags(fs)
	o.addSessionFlags(fs)
	o.addGenerationFlags(fs)
	o.addCacheFlags(fs)
	o.addStoreFlags(fs)
}

// Flags returns the flags grouped by section for help output.
func (o *Options) Flags() (fss app.NamedFlagSets) {
	o.HTTP.AddFlags(fss.FlagSet("http"))
	o.Log.AddFlags(fss.FlagSet("log"))
	o.Milvus.AddFlags(fss.FlagSet("milvus"))
	o.addEmbeddingFlags(fss.FlagSet("llm"))
	o.addChatFlags(fss.FlagSet("llm"))
	o.addKnowledgeFlags(fss.FlagSet("knowledge"))
	o.addSessionFlags(fss.FlagSet("session"))
	o.addGenerationFlags(fss.FlagSet("generation"))
	o.addCacheFlags(fss.FlagSet("cache"))
	o.addStoreFlags(fss.FlagSet("store"))
	return fss
}

func (o *Options) addEmbeddingFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Embedding.Provider, "embedding.provider", o.Embedding.Provider, "Embedding provider (ollama, openai)")
	fs.StringVar(&o.Embedding.BaseURL, "embedding.base-url", o.Embedding.BaseURL, "Embedding API base URL")
	fs.StringVar(&o.Embedding.APIKey, "embedding.api-key", o.Embedding.APIKey, "Embedding API key (for OpenAI)")
	fs.StringVar(&o.Embedding.Model, "embedding.model", o.Embedding.Model, "Embedding model name")
	fs.DurationVar(&o.Embedding.Timeout, "embedding.timeout", o.Embedding.Timeout, "Embedding request timeout")
	fs.IntVar(&o.Embedding.MaxRetries, "embedding.max-retries", o.Embedding.MaxRetries, "Embedding max retries")
}

func (o *Options) addChatFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Chat.Provider, "chat.provider", o.Chat.Provider, "Chat provider (ollama, openai)")
	fs.StringVar(&o.Chat.BaseURL, "chat.base-url", o.Chat.BaseURL, "Chat API base URL")
	fs.StringVar(&o.Chat.APIKey, "chat.api-key", o.Chat.APIKey, "Chat API key (for OpenAI)")
	fs.StringVar(&o.Chat.Model, "chat.model", o.Chat.Model, "Chat model name")
	fs.DurationVar(&o.Chat.Timeout, "chat.timeout", o.Chat.Timeout, "Chat request timeout")
	fs.IntVar(&o.Chat.MaxRetries, "chat.max-retries", o.Chat.MaxRetries, "Chat max retries")
}

func (o *Options) addKnowledgeFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Knowledge.ChunkSize, "knowledge.chunk-size", o.Knowledge.ChunkSize, "Target chunk size in characters")
	fs.IntVar(&o.Knowledge.ChunkOverlap, "knowledge.chunk-overlap", o.Knowledge.ChunkOverlap, "Approximate overlap between chunks")
	fs.IntVar(&o.Knowledge.MinChunkLen, "knowledge.min-chunk-len", o.Knowledge.MinChunkLen, "Minimum chunk length; shorter chunks are discarded")
	fs.StringVar(&o.Knowledge.Collection, "knowledge.collection", o.Knowledge.Collection, "Vector collection name")
	fs.IntVar(&o.Knowledge.EmbeddingDim, "knowledge.embedding-dim", o.Knowledge.EmbeddingDim, "Embedding vector dimension")
	fs.IntVar(&o.Knowledge.TopK, "knowledge.top-k", o.Knowledge.TopK, "Number of chunks retrieved per query")
	fs.Float64Var(&o.Knowledge.MinScore, "knowledge.min-score", o.Knowledge.MinScore, "Similarity floor for chat retrieval")
	fs.Float64Var(&o.Knowledge.SearchMinScore, "knowledge.search-min-score", o.Knowledge.SearchMinScore, "Similarity floor for knowledge-base search")
	fs.StringVar(&o.Knowledge.DataDir, "knowledge.data-dir", o.Knowledge.DataDir, "Directory for temporary upload files")
	fs.StringVar(&o.Knowledge.VectorDriver, "knowledge.vector-driver", o.Knowledge.VectorDriver, "Vector index backend (milvus, memory)")
}

func (o *Options) addSessionFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&o.Session.Timeout, "session.timeout", o.Session.Timeout, "Idle duration after which a session expires")
	fs.IntVar(&o.Session.MaxHistory, "session.max-history", o.Session.MaxHistory, "Maximum messages retained per session")
	fs.IntVar(&o.Session.HistoryWindow, "session.history-window", o.Session.HistoryWindow, "Recent messages passed to generation")
	fs.StringVar(&o.Session.WelcomeMessage, "session.welcome-message", o.Session.WelcomeMessage, "Welcome message returned on session creation")
	fs.Float64Var(&o.Session.ScoreWeight, "session.score-weight", o.Session.ScoreWeight, "Weight of mean retrieval score in answer confidence")
	fs.Float64Var(&o.Session.IntentWeight, "session.intent-weight", o.Session.IntentWeight, "Weight of intent confidence in answer confidence")
	fs.Float64Var(&o.Session.MinConfidence, "session.min-confidence", o.Session.MinConfidence, "Confidence floor when no chunks are retrieved")
}

func (o *Options) addGenerationFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Generation.MaxTokens, "generation.max-tokens", o.Generation.MaxTokens, "Maximum tokens for generated answers")
	fs.Float64Var(&o.Generation.Temperature, "generation.temperature", o.Generation.Temperature, "Generation temperature")
	fs.StringVar(&o.Generation.Policy, "generation.policy", o.Generation.Policy, "Behavioral instruction for the assistant")
}

func (o *Options) addCacheFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable answer cache")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Cache TTL duration")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Cache key prefix")
	o.Cache.Redis.AddFlags(fs)
}

func (o *Options) addStoreFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Store.Driver, "store.driver", o.Store.Driver, "Session store backend (memory, sqlite)")
	fs.StringVar(&o.Store.DSN, "store.dsn", o.Store.DSN, "Database source name for persistent backends")
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if err := o.HTTP.Validate(); err != nil {
		return err
	}
	for _, err := range o.Milvus.Validate() {
		return err
	}
	for _, err := range o.Embedding.Validate() {
		return fmt.Errorf("embedding: %w", err)
	}
	for _, err := range o.Chat.Validate() {
		return fmt.Errorf("chat: %w", err)
	}
	if o.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("knowledge.chunk-size must be positive")
	}
	if o.Knowledge.MinChunkLen < 0 || o.Knowledge.MinChunkLen >= o.Knowledge.ChunkSize {
		return fmt.Errorf("knowledge.min-chunk-len must be in [0, chunk-size)")
	}
	if o.Knowledge.TopK <= 0 {
		return fmt.Errorf("knowledge.top-k must be positive")
	}
	if o.Knowledge.MinScore < 0 || o.Knowledge.MinScore > 1 {
		return fmt.Errorf("knowledge.min-score must be in [0, 1]")
	}
	if o.Knowledge.VectorDriver != "milvus" && o.Knowledge.VectorDriver != "memory" {
		return fmt.Errorf("knowledge.vector-driver must be 'milvus' or 'memory'")
	}
	if o.Session.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}
	if o.Session.HistoryWindow <= 0 || o.Session.HistoryWindow > o.Session.MaxHistory {
		return fmt.Errorf("session.history-window must be in (0, max-history]")
	}
	if w := o.Session.ScoreWeight + o.Session.IntentWeight; w <= 0 || w > 1.0001 {
		return fmt.Errorf("session confidence weights must sum to (0, 1]")
	}
	if o.Store.Driver != "memory" && o.Store.Driver != "sqlite" {
		return fmt.Errorf("store.driver must be 'memory' or 'sqlite'")
	}
	return nil
}

// Complete completes the options.
func (o *Options) Complete() error {
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Chat.Complete(); err != nil {
		return err
	}
	return o.Cache.Redis.Validate()
}

// GetTimeout returns the budget for one message pipeline: an intent
// classification call, an embedding call and a generation call.
func (o *Options) GetTimeout() time.Duration {
	return o.Embedding.Timeout + 2*o.Chat.Timeout
}
