package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"rag-chatbot/internal/chat"
	"rag-chatbot/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	sessionCookie = "rag_session"
	pageTitle     = "RAG Chatbot"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type renderedMessage struct {
	Role    models.Role
	Content template.HTML
}

type pageData struct {
	Title    string
	Status   models.SessionStatus
	Messages []renderedMessage
}

// UIService serves the browser chat page. The session is tracked with a
// cookie so every reload is one evaluation pass over the same session.
type UIService struct {
	sessions *chat.Store
	markdown goldmark.Markdown
}

func NewUIService(sessions *chat.Store) *UIService {
	return &UIService{
		sessions: sessions,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

func (s *UIService) AddRoutes(r chi.Router) {
	r.Get("/", s.Index)
	r.Post("/ask", s.Ask)
	r.Post("/api-key", s.SetAPIKey)
}

func (s *UIService) Index(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	session.EnsureWelcome()
	_ = session.EnsurePipeline(r.Context())

	data := pageData{
		Title:  pageTitle,
		Status: session.Status(),
	}
	for _, msg := range session.History() {
		content, err := s.render(msg)
		if err != nil {
			writeError(w, r, err)
			return
		}
		data.Messages = append(data.Messages, renderedMessage{Role: msg.Role, Content: content})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *UIService) Ask(w http.ResponseWriter, r *http.Request) {
	req, err := ParseForm[models.ChatRequest](r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session := s.session(w, r)
	if _, err := session.Ask(r.Context(), req.Question); err != nil && !errors.Is(err, chat.ErrEmptyQuestion) {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *UIService) SetAPIKey(w http.ResponseWriter, r *http.Request) {
	req, err := ParseForm[models.APIKeyRequest](r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session := s.session(w, r)
	session.SetAPIKey(req.APIKey)
	if err := session.EnsurePipeline(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("RAG system not initialized")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// session returns the session named by the cookie, starting one when the
// cookie is absent or malformed.
func (s *UIService) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return s.sessions.GetOrCreate(id)
		}
	}

	session := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID().String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session
}

// render turns assistant markdown into HTML; user input is shown as typed.
func (s *UIService) render(msg models.Message) (template.HTML, error) {
	if msg.Role != models.RoleAssistant {
		return template.HTML(template.HTMLEscapeString(msg.Content)), nil
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(msg.Content), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
