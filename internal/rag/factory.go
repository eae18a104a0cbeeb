package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/db"
	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/parser"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/uptrace/bun"
)

var ErrMissingAPIKey = errors.New("api key is required")

// legacyIndexKey names the single shared index used when the fingerprint
// cache is disabled.
const legacyIndexKey = "legacy"

// Providers creates the external collaborators of a pipeline. Tests replace
// them with in-memory fakes.
type Providers struct {
	Embedder func(ctx context.Context, apiKey string) (embeddings.Embedder, error)
	LLM      func(ctx context.Context, apiKey string) (llms.Model, error)
	Store    func(ctx context.Context, indexKey string, embedder embeddings.Embedder) (IndexStore, error)
}

// DefaultProviders wires the configured model providers and vector store.
// bunDB is only used when rag.vector_store is pgvector.
func DefaultProviders(cfg *config.Config, bunDB *bun.DB) Providers {
	return Providers{
		Embedder: func(ctx context.Context, apiKey string) (embeddings.Embedder, error) {
			return embedding.NewEmbedder(ctx, &cfg.EmbedLLM, apiKey, cfg.RAG.BatchSize)
		},
		LLM: func(ctx context.Context, apiKey string) (llms.Model, error) {
			return llmservice.NewLLM(ctx, &cfg.LLM, apiKey)
		},
		Store: func(ctx context.Context, indexKey string, embedder embeddings.Embedder) (IndexStore, error) {
			switch cfg.RAG.VectorStore {
			case config.VectorStorePGVector:
				if bunDB == nil {
					return nil, errors.New("pgvector store requires a database connection")
				}
				return db.NewStore(bunDB, indexKey), nil
			default:
				return chromemdb.NewVectorDBManager(
					filepath.Join(cfg.RAG.PersistDir, indexKey),
					cfg.RAG.CollectionName,
					cfg.RAG.Compress,
					embedder.EmbedQuery,
				), nil
			}
		},
	}
}

// IndexStats describes how an index was obtained.
type IndexStats struct {
	Key    string
	Built  bool
	Chunks int
}

// Factory builds pipelines over the configured document. Index construction
// is serialized so concurrent sessions never build the same index twice.
type Factory struct {
	cfg       *config.Config
	providers Providers
	parser    parser.Parser

	mu sync.Mutex
}

func NewFactory(cfg *config.Config, providers Providers) *Factory {
	return &Factory{
		cfg:       cfg,
		providers: providers,
		parser:    parser.NewParser(&cfg.RAG),
	}
}

// Build returns a ready pipeline for apiKey, loading the persisted index or
// building it from the document first.
func (f *Factory) Build(ctx context.Context, apiKey string) (*Pipeline, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if err := f.checkDocument(); err != nil {
		return nil, err
	}

	embedder, err := f.providers.Embedder(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	store, stats, err := f.EnsureIndex(ctx, embedder)
	if err != nil {
		return nil, err
	}

	llm, err := f.providers.LLM(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}

	log.Info().
		Str("document", f.cfg.Document.Path).
		Str("index_key", stats.Key).
		Bool("built", stats.Built).
		Msg("RAG pipeline ready")

	retriever := NewRetriever(embedder, store, f.cfg.RAG.TopK)
	return NewPipeline(retriever, llm, f.cfg.LLM.Temperature, f.cfg.LLM.Timeout), nil
}

// EnsureIndex returns the index of the current document version. When none
// is persisted the document is parsed, embedded and stored first.
func (f *Factory) EnsureIndex(ctx context.Context, embedder embeddings.Embedder) (IndexStore, IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkDocument(); err != nil {
		return nil, IndexStats{}, err
	}

	key, err := f.indexKey()
	if err != nil {
		return nil, IndexStats{}, err
	}
	stats := IndexStats{Key: key}

	store, err := f.providers.Store(ctx, key, embedder)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to open vector store: %w", err)
	}

	exists, err := store.Exists(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to check vector store: %w", err)
	}
	if exists {
		log.Info().Str("index_key", key).Msg("Loading persisted vector index")
		return store, stats, nil
	}

	path := f.cfg.Document.Path
	log.Info().Str("document", path).Str("index_key", key).Msg("Building vector index")

	chunks, err := f.parser.ParseDocument(path)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(chunks) == 0 {
		return nil, stats, fmt.Errorf("no text extracted from %s", path)
	}

	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, embedder, filepath.Base(path), chunks)
	if err != nil {
		return nil, stats, err
	}
	if err := store.Store(ctx, chunkEmbeddings); err != nil {
		return nil, stats, fmt.Errorf("failed to persist vector index: %w", err)
	}

	stats.Built = true
	stats.Chunks = len(chunkEmbeddings)
	return store, stats, nil
}

func (f *Factory) checkDocument() error {
	info, err := os.Stat(f.cfg.Document.Path)
	if err != nil {
		return fmt.Errorf("document %s: %w", f.cfg.Document.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("document %s is a directory", f.cfg.Document.Path)
	}
	return nil
}

// indexKey names the index of the current document version. With the
// fingerprint cache disabled every version shares one index.
func (f *Factory) indexKey() (string, error) {
	if !f.cfg.RAG.UseFingerprint() {
		return legacyIndexKey, nil
	}
	fingerprint, err := helper.FileFingerprint(f.cfg.Document.Path)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint document: %w", err)
	}
	return fingerprint[:16], nil
}
