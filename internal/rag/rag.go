package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Pipeline answers questions from the retrieved context only. It holds no
// per-question state and can be reused.
type Pipeline struct {
	retriever   *Retriever
	llm         llms.Model
	prompt      prompts.ChatPromptTemplate
	temperature float64
	timeout     time.Duration
}

// NewPipeline composes retrieval, prompt filling and generation. A zero
// timeout leaves calls bounded only by ctx.
func NewPipeline(retriever *Retriever, llm llms.Model, temperature float64, timeout time.Duration) *Pipeline {
	return &Pipeline{
		retriever:   retriever,
		llm:         llm,
		prompt:      newPromptTemplate(),
		temperature: temperature,
		timeout:     timeout,
	}
}

// Invoke returns the complete answer to question. Failures are returned
// unchanged in kind and never retried.
func (p *Pipeline) Invoke(ctx context.Context, question string) (string, error) {
	resp, err := p.Query(ctx, question)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Query is Invoke plus the sources the answer was grounded on.
func (p *Pipeline) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	chunks, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	log.Debug().Str("question", question).Int("chunks", len(chunks)).Msg("Retrieved context")

	resp := &models.PromptResponse{
		Query:  question,
		Source: formatSources(chunks),
	}
	if len(chunks) == 0 {
		resp.Content = models.RefusalMessage
		return resp, nil
	}

	messages, err := buildMessages(p.prompt, formatDocs(chunks), question)
	if err != nil {
		return nil, err
	}

	answer, err := llmservice.GenerateContent(ctx, p.llm, messages, p.temperature)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	resp.Content = normalizeAnswer(answer)
	return resp, nil
}

// normalizeAnswer collapses any reply carrying the refusal sentence to
// exactly that sentence.
func normalizeAnswer(answer string) string {
	if strings.Contains(answer, models.RefusalMessage) {
		return models.RefusalMessage
	}
	return answer
}
