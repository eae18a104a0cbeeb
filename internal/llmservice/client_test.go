package llmservice

import (
	"context"
	"testing"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

func TestGenerateContent(t *testing.T) {
	llm := mocks.NewLLM("  Returns are accepted within 30 days.\n")
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, "system"),
		llms.TextParts(schema.ChatMessageTypeHuman, "What is the refund policy?"),
	}

	answer, err := GenerateContent(context.Background(), llm, messages, 0.1)
	require.NoError(t, err)
	assert.Equal(t, "Returns are accepted within 30 days.", answer)
	assert.InDelta(t, 0.1, llm.LastOptions().Temperature, 1e-9)
	assert.Len(t, llm.LastMessages(), 2)
}

func TestGenerateContentEmpty(t *testing.T) {
	_, err := GenerateContent(context.Background(), mocks.NewLLM("   "), nil, 0.1)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateContentError(t *testing.T) {
	llm := &mocks.LLM{Respond: func([]llms.MessageContent) (string, error) {
		return "", mocks.ErrUnavailable
	}}
	_, err := GenerateContent(context.Background(), llm, nil, 0.1)
	assert.ErrorIs(t, err, mocks.ErrUnavailable)
}

func TestNewLLMRequiresKey(t *testing.T) {
	ctx := context.Background()

	_, err := NewLLM(ctx, &config.LLMConfig{Provider: config.ProviderGoogleAI, Model: "gemini-2.5-flash"}, "")
	assert.ErrorContains(t, err, "api key is required")

	_, err = NewLLM(ctx, &config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"}, " ")
	assert.ErrorContains(t, err, "api key is required")

	_, err = NewLLM(ctx, &config.LLMConfig{Provider: "bard"}, "key")
	assert.ErrorContains(t, err, "unsupported llm provider")
}

func TestNewClientsOffline(t *testing.T) {
	ctx := context.Background()

	llm, err := NewLLM(ctx, &config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3", BaseURL: "http://localhost:11434"}, "")
	require.NoError(t, err)
	assert.NotNil(t, llm)

	client, err := NewEmbeddingClient(ctx, &config.LLMConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  "http://localhost:9999/v1",
		Model:    "text-embedding-3-small",
	}, "Bearer test-key")
	require.NoError(t, err)
	assert.NotNil(t, client)
}
