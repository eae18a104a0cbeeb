package embedding

import (
	"context"
	"testing"

	"rag-chatbot/internal/mocks"
	"rag-chatbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEmbedding(t *testing.T) {
	client := mocks.NewEmbedderClient()
	embedder, err := Wrap(client, 2)
	require.NoError(t, err)

	chunks := []models.Chunk{
		{Content: "refund policy", PageNumber: 1, ChunkID: 1, Offset: 0},
		{Content: "shipping times", PageNumber: 1, ChunkID: 2, Offset: 14},
		{Content: "warranty terms", PageNumber: 2, ChunkID: 1, Offset: 0},
	}

	out, err := GenerateEmbedding(context.Background(), embedder, "completedata.pdf", chunks)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, ce := range out {
		assert.Equal(t, chunks[i].Content, ce.Content)
		assert.Equal(t, chunks[i].PageNumber, ce.PageNumber)
		assert.Equal(t, chunks[i].ChunkID, ce.ChunkID)
		assert.Equal(t, "completedata.pdf", ce.SourceFilename)
		assert.Equal(t, mocks.Embed(chunks[i].Content), ce.Embedding)
	}

	// one vector per chunk, batched two at a time
	assert.Equal(t, 3, client.Texts())
	assert.Equal(t, 2, client.Calls())
}

func TestGenerateEmbeddingNoChunks(t *testing.T) {
	client := mocks.NewEmbedderClient()
	embedder, err := Wrap(client, 0)
	require.NoError(t, err)

	out, err := GenerateEmbedding(context.Background(), embedder, "completedata.pdf", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, client.Calls())
}

func TestGenerateEmbeddingError(t *testing.T) {
	client := mocks.NewEmbedderClient()
	client.Err = mocks.ErrUnavailable
	embedder, err := Wrap(client, 0)
	require.NoError(t, err)

	_, err = GenerateEmbedding(context.Background(), embedder, "completedata.pdf", []models.Chunk{{Content: "x"}})
	assert.ErrorIs(t, err, mocks.ErrUnavailable)
}
