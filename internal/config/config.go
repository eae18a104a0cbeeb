package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"

	VectorStoreChromem  = "chromem"
	VectorStorePGVector = "pgvector"
)

const (
	defaultAddr           = ":8501"
	defaultDocumentPath   = "completedata.pdf"
	defaultLLMModel       = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	defaultTemperature    = 0.1
	defaultChunkSize      = 1000 // characters
	defaultChunkOverlap   = 200  // characters
	defaultTopK           = 3
	defaultBatchSize      = 100
	defaultPersistDir     = "chroma_db_gemini"
	defaultCollection     = "completedata"
	defaultMaxSessions    = 100
	defaultLogLevel       = "info"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Document DocumentConfig `yaml:"document"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" env:"RAG_SERVER_ADDR"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DocumentConfig struct {
	Path string `yaml:"path" env:"RAG_DOCUMENT_PATH"`
}

// LLMConfig describes one hosted model endpoint. When Key is empty the
// session's key (GEMINI_API_KEY or the sidebar entry) is used.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Key         string        `yaml:"key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	TopK             int    `yaml:"top_k"`
	BatchSize        int    `yaml:"batch_size"`
	PersistDir       string `yaml:"persist_dir" env:"RAG_PERSIST_DIR"`
	CollectionName   string `yaml:"collection_name"`
	VectorStore      string `yaml:"vector_store" env:"RAG_VECTOR_STORE"`
	FingerprintCache *bool  `yaml:"fingerprint_cache"`
	Compress         bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"RAG_DATABASE_URL"`
	Password string `yaml:"password" env:"RAG_DATABASE_PASSWORD"`
	Debug    bool   `yaml:"debug"`
}

type SessionConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"RAG_LOG_LEVEL"`
}

// envKeys is read from the environment only so the key never lands in a config file.
type envKeys struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
}

// LoadConfig reads the YAML file at path (a missing file yields defaults),
// loads .env if present and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := newConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", path).Msg("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, continuing with environment variables")
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvAPIKey returns GEMINI_API_KEY, loading .env first. An empty result means
// the key has to be entered interactively.
func EnvAPIKey() string {
	_ = godotenv.Load()
	var keys envKeys
	if err := env.Parse(&keys); err != nil {
		return ""
	}
	return strings.TrimSpace(keys.GeminiAPIKey)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Document.Path == "" {
		c.Document.Path = defaultDocumentPath
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGoogleAI
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = c.LLM.Provider
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = defaultEmbeddingModel
	}
	if c.EmbedLLM.BaseURL == "" && c.EmbedLLM.Provider == c.LLM.Provider {
		c.EmbedLLM.BaseURL = c.LLM.BaseURL
	}

	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.BatchSize == 0 {
		c.RAG.BatchSize = defaultBatchSize
	}
	if c.RAG.PersistDir == "" {
		c.RAG.PersistDir = defaultPersistDir
	}
	if c.RAG.CollectionName == "" {
		c.RAG.CollectionName = defaultCollection
	}
	if c.RAG.VectorStore == "" {
		c.RAG.VectorStore = VectorStoreChromem
	}
	if c.RAG.FingerprintCache == nil {
		enabled := true
		c.RAG.FingerprintCache = &enabled
	}

	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = defaultMaxSessions
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Validate checks the values the pipeline cannot recover from at runtime.
func (c *Config) Validate() error {
	for _, llm := range []LLMConfig{c.LLM, c.EmbedLLM} {
		switch llm.Provider {
		case ProviderGoogleAI, ProviderOpenAI, ProviderOllama:
		default:
			return fmt.Errorf("unsupported llm provider: %q", llm.Provider)
		}
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, %d), got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	switch c.RAG.VectorStore {
	case VectorStoreChromem:
	case VectorStorePGVector:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required when rag.vector_store is %q", VectorStorePGVector)
		}
	default:
		return fmt.Errorf("unsupported vector store: %q", c.RAG.VectorStore)
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("session.max_sessions must be positive, got %d", c.Session.MaxSessions)
	}
	return nil
}

// UseFingerprint reports whether the persisted index is keyed by the
// document's content hash.
func (c *RAGConfig) UseFingerprint() bool {
	return c.FingerprintCache == nil || *c.FingerprintCache
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return &cfg
}

// newConfig presets the fields for which zero is a valid setting, so the
// YAML decoder only replaces them when the key is present.
func newConfig() Config {
	var cfg Config
	cfg.LLM.Temperature = defaultTemperature
	cfg.RAG.ChunkOverlap = defaultChunkOverlap
	return cfg
}
