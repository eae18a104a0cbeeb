package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-chatbot/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrEmptyResponse = errors.New("model returned no content")

// Client is what every supported provider implements: chat generation and
// batch embedding.
type Client interface {
	llms.Model
	embeddings.EmbedderClient
}

// NewLLM creates the generation model described by llmConfig.
func NewLLM(ctx context.Context, llmConfig *config.LLMConfig, apiKey string) (llms.Model, error) {
	return newClient(ctx, llmConfig, apiKey, false)
}

// NewEmbeddingClient creates the embedding client described by llmConfig.
func NewEmbeddingClient(ctx context.Context, llmConfig *config.LLMConfig, apiKey string) (embeddings.EmbedderClient, error) {
	return newClient(ctx, llmConfig, apiKey, true)
}

func newClient(ctx context.Context, llmConfig *config.LLMConfig, apiKey string, embedding bool) (Client, error) {
	key := strings.TrimSpace(llmConfig.Key)
	if key == "" {
		key = strings.TrimSpace(apiKey)
	}
	key = strings.TrimPrefix(key, "Bearer ")

	log.Debug().
		Str("provider", llmConfig.Provider).
		Str("base_url", llmConfig.BaseURL).
		Str("model", llmConfig.Model).
		Bool("embedding", embedding).
		Msg("Creating llm client")

	switch llmConfig.Provider {
	case config.ProviderGoogleAI:
		if key == "" {
			return nil, errors.New("gemini api key is required")
		}
		opts := []googleai.Option{googleai.WithAPIKey(key)}
		if embedding {
			opts = append(opts, googleai.WithDefaultEmbeddingModel(llmConfig.Model))
		} else {
			opts = append(opts, googleai.WithDefaultModel(llmConfig.Model))
		}
		client, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("could not create googleai client: %w", err)
		}
		return client, nil

	case config.ProviderOpenAI:
		if key == "" {
			return nil, errors.New("openai api key is required")
		}
		opts := []openai.Option{openai.WithToken(key)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		if embedding {
			opts = append(opts, openai.WithEmbeddingModel(llmConfig.Model))
		} else {
			opts = append(opts, openai.WithModel(llmConfig.Model))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("could not create openai client: %w", err)
		}
		return client, nil

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", llmConfig.Provider)
	}
}

// GenerateContent calls the model once and returns the text of the first choice.
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent, temperature float64) (string, error) {
	resp, err := llm.GenerateContent(ctx, messages, llms.WithTemperature(temperature))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
