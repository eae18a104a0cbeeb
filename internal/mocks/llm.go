// Package mocks holds in-memory stand-ins for the hosted model APIs.
package mocks

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

const EmbeddingDimensions = 1024

// EmbedderClient is a deterministic bag-of-words embedding client.
type EmbedderClient struct {
	mu    sync.Mutex
	calls int
	texts int
	Err   error
}

func NewEmbedderClient() *EmbedderClient {
	return &EmbedderClient{}
}

func (c *EmbedderClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	c.texts += len(texts)
	err := c.Err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = Embed(text)
	}
	return vectors, nil
}

// Calls returns how many CreateEmbedding requests were made.
func (c *EmbedderClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Texts returns how many texts were embedded in total.
func (c *EmbedderClient) Texts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.texts
}

// Embed hashes each word of text into a fixed number of buckets.
func Embed(text string) []float32 {
	v := make([]float32, EmbeddingDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%EmbeddingDimensions]++
	}
	if len(words) == 0 {
		v[0] = 1
	}
	return v
}

// LLM answers with Respond, or with Answer when Respond is nil.
type LLM struct {
	mu       sync.Mutex
	Answer   string
	Respond  func(messages []llms.MessageContent) (string, error)
	calls    int
	messages []llms.MessageContent
	options  llms.CallOptions
}

func NewLLM(answer string) *LLM {
	return &LLM{Answer: answer}
}

func (m *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	m.messages = messages
	m.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&m.options)
	}
	respond := m.Respond
	answer := m.Answer
	m.mu.Unlock()

	if respond != nil {
		var err error
		answer, err = respond(messages)
		if err != nil {
			return nil, err
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: answer}},
	}, nil
}

func (m *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *LLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastMessages returns the messages of the most recent call.
func (m *LLM) LastMessages() []llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages
}

func (m *LLM) LastOptions() llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options
}

// MessageText concatenates the text parts of a message.
func MessageText(msg llms.MessageContent) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

var ErrUnavailable = errors.New("service unavailable")
