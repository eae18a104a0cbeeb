package rag

import (
	"context"
	"fmt"

	"rag-chatbot/internal/models"

	"github.com/tmc/langchaingo/embeddings"
)

// IndexStore persists and queries the chunk embeddings of one document version.
type IndexStore interface {
	Exists(ctx context.Context) (bool, error)
	Store(ctx context.Context, chunks []models.ChunkEmbedding) error
	Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievedChunk, error)
}

// Retriever maps a query to its top-k most similar chunks.
type Retriever struct {
	embedder embeddings.Embedder
	store    IndexStore
	k        int
}

func NewRetriever(embedder embeddings.Embedder, store IndexStore, k int) *Retriever {
	return &Retriever{embedder: embedder, store: store, k: k}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.RetrievedChunk, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.store.Search(ctx, queryEmbedding, r.k)
}
