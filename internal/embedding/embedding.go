package embedding

import (
	"context"
	"fmt"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
)

// NewEmbedder creates a langchaingo embedder backed by the configured provider.
func NewEmbedder(ctx context.Context, llmConfig *config.LLMConfig, apiKey string, batchSize int) (*embeddings.EmbedderImpl, error) {
	client, err := llmservice.NewEmbeddingClient(ctx, llmConfig, apiKey)
	if err != nil {
		return nil, err
	}
	return Wrap(client, batchSize)
}

// Wrap turns a raw embedding client into an embedder with batching.
func Wrap(client embeddings.EmbedderClient, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// GenerateEmbedding embeds every chunk of filename, one vector per chunk.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, filename string, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(vectors), len(chunks))
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, len(chunks))
	for i, chunk := range chunks {
		chunkEmbeddings[i] = models.ChunkEmbedding{
			Content:        chunk.Content,
			Embedding:      vectors[i],
			SourceFilename: filename,
			PageNumber:     chunk.PageNumber,
			ChunkID:        chunk.ChunkID,
			Offset:         chunk.Offset,
		}
	}

	log.Debug().Str("file", filename).Int("chunks", len(chunkEmbeddings)).Msg("Generated embeddings")
	return chunkEmbeddings, nil
}
