package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rag-chatbot/internal/chat"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAnswerer struct{}

func (echoAnswerer) Invoke(ctx context.Context, question string) (string, error) {
	return "**Answer** to: " + question, nil
}

func newTestRouter(t *testing.T, envKey string) http.Handler {
	t.Helper()
	docPath := filepath.Join(t.TempDir(), "completedata.pdf")
	require.NoError(t, os.WriteFile(docPath, []byte("%PDF-1.4"), 0o644))

	store := chat.NewStore(10, chat.Settings{
		DocumentPath: docPath,
		EnvAPIKey:    envKey,
		Build: func(ctx context.Context, apiKey string) (chat.Answerer, error) {
			return echoAnswerer{}, nil
		},
	})
	return NewRouter(&config.Default().Server, zerolog.Nop(), store)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, "")
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestChatSessionFlow(t *testing.T) {
	router := newTestRouter(t, "")

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := decode[models.StartSessionResponse](t, rec).SessionID
	base := "/api/sessions/" + sessionID

	rec = doJSON(t, router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.SessionStatus](t, rec)
	assert.False(t, status.Ready)
	assert.Equal(t, chat.KeySourceNone, status.APIKeySource)
	assert.Equal(t, "completedata.pdf", status.Document)

	rec = doJSON(t, router, http.MethodPost, base+"/messages", models.ChatRequest{Question: "What is covered?"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.ChatResponse](t, rec)
	assert.Equal(t, models.NotInitializedMessage, resp.Answer)
	assert.Equal(t, 3, resp.HistoryLength)

	rec = doJSON(t, router, http.MethodPost, base+"/api-key", models.APIKeyRequest{APIKey: "typed-key"})
	require.Equal(t, http.StatusOK, rec.Code)
	status = decode[models.SessionStatus](t, rec)
	assert.True(t, status.Ready)
	assert.Equal(t, chat.KeySourceSession, status.APIKeySource)

	rec = doJSON(t, router, http.MethodPost, base+"/messages", models.ChatRequest{Question: "What is covered?"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[models.ChatResponse](t, rec)
	assert.Equal(t, "**Answer** to: What is covered?", resp.Answer)
	assert.Equal(t, 5, resp.HistoryLength)

	rec = doJSON(t, router, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]models.Message](t, rec)
	require.Len(t, history, 5)
	assert.Equal(t, models.RoleUser, history[3].Role)
	assert.Equal(t, "What is covered?", history[3].Content)
}

func TestChatErrors(t *testing.T) {
	router := newTestRouter(t, "env-key")

	rec := doJSON(t, router, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	base := "/api/sessions/" + decode[models.StartSessionResponse](t, rec).SessionID

	req := httptest.NewRequest(http.MethodPost, base+"/messages", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, base+"/messages", models.ChatRequest{Question: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatPage(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>completedata.pdf</strong> file")
	assert.Contains(t, rec.Body.String(), `type="password"`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, sessionCookie, cookie.Name)

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec = post("/ask", url.Values{"question": {"<b>too early</b>"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = post("/api-key", url.Values{"api_key": {"typed-key"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = post("/ask", url.Values{"question": {"What is covered?"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "&lt;b&gt;too early&lt;/b&gt;")
	assert.Contains(t, body, "Cannot generate response. The RAG system is not initialized.")
	assert.Contains(t, body, "<strong>Answer</strong> to: What is covered?")
	assert.Contains(t, body, "RAG system ready.")
	assert.Contains(t, body, "API key set for this session.")
}

func TestChatPageWithEnvKey(t *testing.T) {
	router := newTestRouter(t, "env-key")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "API key loaded from environment.")
	assert.NotContains(t, rec.Body.String(), `type="password"`)
	assert.Contains(t, rec.Body.String(), "RAG system ready.")
}
