package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingAPIKey   = errors.New("no api key provided")
	ErrMissingDocument = errors.New("source document not found")
	ErrEmptyQuestion   = errors.New("question is empty")
)

const (
	KeySourceEnv     = "env"
	KeySourceSession = "session"
	KeySourceNone    = "none"
)

// Answerer produces the complete answer to one question.
type Answerer interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// BuildFunc constructs the answer pipeline for an API key.
type BuildFunc func(ctx context.Context, apiKey string) (Answerer, error)

// Settings are shared by every session of one server.
type Settings struct {
	DocumentPath string
	// EnvAPIKey takes precedence over a key entered for the session.
	EnvAPIKey string
	Build     BuildFunc
}

// Session is the conversation state of one browser or API client. The
// pipeline moves from uninitialized to ready at most once.
type Session struct {
	mu       sync.Mutex
	id       uuid.UUID
	settings Settings

	history  []models.Message
	apiKey   string
	answerer Answerer
	initErr  error
}

func NewSession(id uuid.UUID, settings Settings) *Session {
	return &Session{id: id, settings: settings}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// EnsureWelcome adds the welcome message to an empty conversation.
func (s *Session) EnsureWelcome() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureWelcome()
}

// SetAPIKey stores the key entered by the user. A ready pipeline is kept.
func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(key)
}

// EnsurePipeline initializes the pipeline when it is not ready yet and both
// a key and the document are available. Failures are remembered for display
// and retried on the next call.
func (s *Session) EnsurePipeline(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensurePipeline(ctx)
}

// Ask records question, answers it and records the answer. The returned
// message is what the user sees, including failures; only an empty question
// is rejected with an error.
func (s *Session) Ask(ctx context.Context, question string) (models.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Message{}, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureWelcome()
	s.appendMessage(models.RoleUser, question)

	if err := s.ensurePipeline(ctx); err != nil {
		return s.appendMessage(models.RoleAssistant, models.NotInitializedMessage), nil
	}

	answer, err := s.answerer.Invoke(ctx, question)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id.String()).Msg("Failed to generate response")
		return s.appendMessage(models.RoleAssistant, models.ResponseError(err)), nil
	}
	return s.appendMessage(models.RoleAssistant, answer), nil
}

// History returns a copy of the conversation in order.
func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureWelcome()
	history := make([]models.Message, len(s.history))
	copy(history, s.history)
	return history
}

func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SessionStatus{
		SessionID:    s.id.String(),
		Ready:        s.answerer != nil,
		APIKeySource: s.keySource(),
		Document:     filepath.Base(s.settings.DocumentPath),
	}
	if s.answerer == nil && s.initErr != nil {
		status.InitError = s.initErr.Error()
	}
	return status
}

func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerer != nil
}

func (s *Session) ensureWelcome() {
	if len(s.history) == 0 {
		s.appendMessage(models.RoleAssistant, models.WelcomeMessage(filepath.Base(s.settings.DocumentPath)))
	}
}

func (s *Session) appendMessage(role models.Role, content string) models.Message {
	msg := models.Message{Role: role, Content: content, Timestamp: time.Now()}
	s.history = append(s.history, msg)
	return msg
}

func (s *Session) ensurePipeline(ctx context.Context) error {
	if s.answerer != nil {
		return nil
	}

	key := s.resolveKey()
	if key == "" {
		s.initErr = ErrMissingAPIKey
		return s.initErr
	}
	exists, err := helper.PathExists(s.settings.DocumentPath)
	if err != nil || !exists {
		s.initErr = fmt.Errorf("%w: %s", ErrMissingDocument, s.settings.DocumentPath)
		return s.initErr
	}

	answerer, err := s.settings.Build(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id.String()).Msg("Failed to initialize RAG system")
		s.initErr = fmt.Errorf("failed to initialize RAG system: %w", err)
		return s.initErr
	}

	s.answerer = answerer
	s.initErr = nil
	log.Info().Str("session_id", s.id.String()).Str("api_key_source", s.keySource()).Msg("RAG system initialized")
	return nil
}

func (s *Session) resolveKey() string {
	if s.settings.EnvAPIKey != "" {
		return s.settings.EnvAPIKey
	}
	return s.apiKey
}

func (s *Session) keySource() string {
	switch {
	case s.settings.EnvAPIKey != "":
		return KeySourceEnv
	case s.apiKey != "":
		return KeySourceSession
	default:
		return KeySourceNone
	}
}
