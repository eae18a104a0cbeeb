package api

import (
	"errors"
	"net/http"

	"rag-chatbot/internal/chat"
	"rag-chatbot/internal/models"

	"github.com/go-chi/chi/v5"
)

// ChatService exposes the chat sessions as a JSON API.
type ChatService struct {
	sessions *chat.Store
}

func NewChatService(sessions *chat.Store) *ChatService {
	return &ChatService{sessions: sessions}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", RestHandler(s.StartSession))
		r.Get("/{session_id}", RestHandler(s.GetSession))
		r.Get("/{session_id}/history", RestHandler(s.GetHistory))
		r.Post("/{session_id}/messages", RestHandler(s.SendMessage))
		r.Post("/{session_id}/api-key", RestHandler(s.SetAPIKey))
	})
}

func (s *ChatService) StartSession(r *http.Request) (any, error) {
	session := s.sessions.Create()
	session.EnsureWelcome()
	_ = session.EnsurePipeline(r.Context())
	return models.StartSessionResponse{SessionID: session.ID().String()}, nil
}

func (s *ChatService) GetSession(r *http.Request) (any, error) {
	session, err := s.session(r)
	if err != nil {
		return nil, err
	}
	_ = session.EnsurePipeline(r.Context())
	return session.Status(), nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	session, err := s.session(r)
	if err != nil {
		return nil, err
	}
	return session.History(), nil
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	session, err := s.session(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[models.ChatRequest](r)
	if err != nil {
		return nil, err
	}

	msg, err := session.Ask(r.Context(), req.Question)
	if errors.Is(err, chat.ErrEmptyQuestion) {
		return nil, CodedError(http.StatusBadRequest, err)
	}
	if err != nil {
		return nil, err
	}

	return models.ChatResponse{
		Answer:        msg.Content,
		HistoryLength: len(session.History()),
	}, nil
}

func (s *ChatService) SetAPIKey(r *http.Request) (any, error) {
	session, err := s.session(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[models.APIKeyRequest](r)
	if err != nil {
		return nil, err
	}

	session.SetAPIKey(req.APIKey)
	_ = session.EnsurePipeline(r.Context())
	return session.Status(), nil
}

func (s *ChatService) session(r *http.Request) (*chat.Session, error) {
	id, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, CodedErrorf(http.StatusNotFound, "session %s not found", id)
	}
	return session, nil
}
