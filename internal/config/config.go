package config

import (
	"strings"
	"time"
)

// DefaultKnowledgeURL is the PDF ingested into the knowledge base when no
// sources are configured.
const DefaultKnowledgeURL = "https://www.learndutch.org/wp-content/uploads/2014/06/e-book-lesson-1-20-1000DutchWords.pdf"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"180s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL (pgvector) connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-default:"postgres://ai:ai@localhost:5532/ai?sslmode=disable"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"    env:"DATABASE_CONNECT_TIMEOUT"    env-default:"5s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// LLMConfig selects and configures the chat model used by every pipeline stage.
type LLMConfig struct {
	Provider        string        `yaml:"provider"          env:"LLM_PROVIDER"          env-default:"openai"`
	Model           string        `yaml:"model"             env:"OPENAI_MODEL"          env-default:"gpt-4o"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"    env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"   env:"OPENAI_BASE_URL"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string        `yaml:"anthropic_model"   env:"ANTHROPIC_MODEL"       env-default:"claude-sonnet-4-5"`
	MaxTokens       int           `yaml:"max_tokens"        env:"LLM_MAX_TOKENS"        env-default:"2048"`
	Temperature     float64       `yaml:"temperature"       env:"LLM_TEMPERATURE"`
	RequestTimeout  time.Duration `yaml:"request_timeout"   env:"LLM_REQUEST_TIMEOUT"   env-default:"150s"`
}

// ChatModel returns the model identifier for the selected provider.
func (c LLMConfig) ChatModel() string {
	if strings.EqualFold(c.Provider, "anthropic") {
		return c.AnthropicModel
	}
	return c.Model
}

// EmbeddingConfig holds settings for the knowledge base embedder (always OpenAI).
type EmbeddingConfig struct {
	Model       string `yaml:"model"       env:"EMBEDDING_MODEL"       env-default:"text-embedding-3-small"`
	Dimensions  int    `yaml:"dimensions"  env:"EMBEDDING_DIMENSIONS"  env-default:"1536"`
	BatchSize   int    `yaml:"batch_size"  env:"EMBEDDING_BATCH_SIZE"  env-default:"64"`
	Concurrency int    `yaml:"concurrency" env:"EMBEDDING_CONCURRENCY" env-default:"4"`
}

// KnowledgeConfig controls knowledge base ingestion and retrieval.
type KnowledgeConfig struct {
	SourcesRaw   string        `yaml:"sources"       env:"KNOWLEDGE_SOURCES"`
	AssumeLoaded bool          `yaml:"assume_loaded" env:"IS_KNOWLEDGE_BASE_LOADED" env-default:"false"`
	Recreate     bool          `yaml:"recreate"      env:"KNOWLEDGE_RECREATE"       env-default:"false"`
	ChunkSize    int           `yaml:"chunk_size"    env:"KNOWLEDGE_CHUNK_SIZE"     env-default:"200"`
	ChunkOverlap int           `yaml:"chunk_overlap" env:"KNOWLEDGE_CHUNK_OVERLAP"`
	SearchLimit  int           `yaml:"search_limit"  env:"KNOWLEDGE_SEARCH_LIMIT"   env-default:"5"`
	MinResults   int           `yaml:"min_results"   env:"KNOWLEDGE_MIN_RESULTS"`
	MinScore     float64       `yaml:"min_score"     env:"KNOWLEDGE_MIN_SCORE"`
	LoadTimeout  time.Duration `yaml:"load_timeout"  env:"KNOWLEDGE_LOAD_TIMEOUT"   env-default:"10m"`

	// Sources is parsed from SourcesRaw during validation.
	Sources []string `yaml:"-" env:"-"`
}

// SearchConfig holds web search fallback settings.
type SearchConfig struct {
	Enabled    bool          `yaml:"enabled"     env:"SEARCH_ENABLED"`
	MaxResults int           `yaml:"max_results" env:"SEARCH_MAX_RESULTS" env-default:"5"`
	Timeout    time.Duration `yaml:"timeout"     env:"SEARCH_TIMEOUT"     env-default:"15s"`
}

// RateLimitConfig limits /ask calls per client, since each one fans out to
// several model calls.
type RateLimitConfig struct {
	AskPerMinute    int           `yaml:"ask_per_minute"   env:"RATE_LIMIT_ASK_PER_MINUTE"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"RATE_LIMIT_CLEANUP"        env-default:"5m"`
}

// defaults seeds the fields whose zero value is a valid setting. These
// fields have no env-default tag: cleanenv would apply it over an explicit
// zero read from YAML.
func defaults() Config {
	return Config{
		Database:  DatabaseConfig{MinConns: 1},
		LLM:       LLMConfig{Temperature: 0.7},
		Knowledge: KnowledgeConfig{ChunkOverlap: 40, MinResults: 3, MinScore: 0.25},
		Search:    SearchConfig{Enabled: true},
		RateLimit: RateLimitConfig{AskPerMinute: 10},
	}
}
