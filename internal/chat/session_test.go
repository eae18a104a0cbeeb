package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rag-chatbot/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnswerer struct {
	answer string
	err    error
	asked  []string
}

func (a *stubAnswerer) Invoke(ctx context.Context, question string) (string, error) {
	a.asked = append(a.asked, question)
	return a.answer, a.err
}

type builder struct {
	answerer *stubAnswerer
	err      error
	keys     []string
}

func (b *builder) Build(ctx context.Context, apiKey string) (Answerer, error) {
	b.keys = append(b.keys, apiKey)
	if b.err != nil {
		return nil, b.err
	}
	return b.answerer, nil
}

func writeDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "completedata.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func newSession(settings Settings) *Session {
	return NewSession(uuid.New(), settings)
}

func TestWelcomeMessage(t *testing.T) {
	s := newSession(Settings{DocumentPath: "data/completedata.pdf"})

	s.EnsureWelcome()
	s.EnsureWelcome()

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.RoleAssistant, history[0].Role)
	assert.Equal(t, models.WelcomeMessage("completedata.pdf"), history[0].Content)
}

func TestAskWithoutKeyNeverInitializes(t *testing.T) {
	b := &builder{answerer: &stubAnswerer{answer: "unused"}}
	s := newSession(Settings{DocumentPath: writeDocument(t), Build: b.Build})

	for _, q := range []string{"first?", "second?", "third?"} {
		msg, err := s.Ask(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, models.NotInitializedMessage, msg.Content)
	}

	assert.False(t, s.Ready())
	assert.Empty(t, b.keys)
	assert.Len(t, s.History(), 2*3+1)

	status := s.Status()
	assert.Equal(t, KeySourceNone, status.APIKeySource)
	assert.Equal(t, ErrMissingAPIKey.Error(), status.InitError)
}

func TestMissingDocumentRetriedOnNextPass(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "completedata.pdf")
	b := &builder{answerer: &stubAnswerer{answer: "Thirty days."}}
	s := newSession(Settings{DocumentPath: docPath, EnvAPIKey: "env-key", Build: b.Build})

	err := s.EnsurePipeline(context.Background())
	assert.ErrorIs(t, err, ErrMissingDocument)
	assert.False(t, s.Ready())
	assert.Contains(t, s.Status().InitError, ErrMissingDocument.Error())

	require.NoError(t, os.WriteFile(docPath, []byte("%PDF-1.4"), 0o644))

	msg, err := s.Ask(context.Background(), "How long do refunds take?")
	require.NoError(t, err)
	assert.Equal(t, "Thirty days.", msg.Content)
	assert.True(t, s.Ready())
	assert.Empty(t, s.Status().InitError)
	assert.Equal(t, []string{"env-key"}, b.keys)
}

func TestEnvKeyTakesPrecedence(t *testing.T) {
	b := &builder{answerer: &stubAnswerer{answer: "ok"}}
	s := newSession(Settings{DocumentPath: writeDocument(t), EnvAPIKey: "env-key", Build: b.Build})
	s.SetAPIKey("typed-key")

	require.NoError(t, s.EnsurePipeline(context.Background()))
	assert.Equal(t, []string{"env-key"}, b.keys)
	assert.Equal(t, KeySourceEnv, s.Status().APIKeySource)
}

func TestSessionKeyInitializesOnce(t *testing.T) {
	b := &builder{answerer: &stubAnswerer{answer: "ok"}}
	s := newSession(Settings{DocumentPath: writeDocument(t), Build: b.Build})

	s.SetAPIKey("  typed-key  ")
	require.NoError(t, s.EnsurePipeline(context.Background()))
	require.NoError(t, s.EnsurePipeline(context.Background()))

	s.SetAPIKey("other-key")
	_, err := s.Ask(context.Background(), "question?")
	require.NoError(t, err)

	assert.Equal(t, []string{"typed-key"}, b.keys)
	assert.Equal(t, KeySourceSession, s.Status().APIKeySource)
}

func TestBuildFailureStaysUninitialized(t *testing.T) {
	b := &builder{err: errors.New("invalid api key")}
	s := newSession(Settings{DocumentPath: writeDocument(t), EnvAPIKey: "bad-key", Build: b.Build})

	msg, err := s.Ask(context.Background(), "question?")
	require.NoError(t, err)
	assert.Equal(t, models.NotInitializedMessage, msg.Content)
	assert.False(t, s.Ready())
	assert.Contains(t, s.Status().InitError, "invalid api key")

	b.err = nil
	b.answerer = &stubAnswerer{answer: "recovered"}
	msg, err = s.Ask(context.Background(), "question?")
	require.NoError(t, err)
	assert.Equal(t, "recovered", msg.Content)
	assert.Len(t, b.keys, 2)
}

func TestAskRecordsFailures(t *testing.T) {
	answerer := &stubAnswerer{err: errors.New("quota exceeded")}
	b := &builder{answerer: answerer}
	s := newSession(Settings{DocumentPath: writeDocument(t), EnvAPIKey: "key", Build: b.Build})

	msg, err := s.Ask(context.Background(), "first?")
	require.NoError(t, err)
	assert.Equal(t, "An error occurred while generating the response: quota exceeded", msg.Content)

	answerer.err = nil
	answerer.answer = "fine now"
	msg, err = s.Ask(context.Background(), "second?")
	require.NoError(t, err)
	assert.Equal(t, "fine now", msg.Content)

	history := s.History()
	require.Len(t, history, 5)
	roles := make([]models.Role, len(history))
	for i, m := range history {
		roles[i] = m.Role
	}
	assert.Equal(t, []models.Role{
		models.RoleAssistant,
		models.RoleUser, models.RoleAssistant,
		models.RoleUser, models.RoleAssistant,
	}, roles)
	assert.Equal(t, "second?", history[3].Content)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	s := newSession(Settings{DocumentPath: writeDocument(t)})

	_, err := s.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Len(t, s.History(), 1)
}

func TestHistoryIsACopy(t *testing.T) {
	s := newSession(Settings{DocumentPath: "completedata.pdf"})
	history := s.History()
	history[0].Content = "changed"
	assert.NotEqual(t, "changed", s.History()[0].Content)
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	st := NewStore(2, Settings{DocumentPath: "completedata.pdf"})

	first := st.Create()
	time.Sleep(time.Millisecond)
	second := st.Create()
	time.Sleep(time.Millisecond)

	_, ok := st.Get(first.ID())
	require.True(t, ok)
	time.Sleep(time.Millisecond)

	third := st.Create()
	assert.Equal(t, 2, st.Len())

	_, ok = st.Get(second.ID())
	assert.False(t, ok, "least recently used session must be evicted")
	_, ok = st.Get(first.ID())
	assert.True(t, ok)
	_, ok = st.Get(third.ID())
	assert.True(t, ok)
}

func TestStoreGetOrCreate(t *testing.T) {
	st := NewStore(10, Settings{DocumentPath: "completedata.pdf"})
	id := uuid.New()

	s := st.GetOrCreate(id)
	assert.Equal(t, id, s.ID())
	assert.Same(t, s, st.GetOrCreate(id))
	assert.Equal(t, 1, st.Len())

	_, ok := st.Get(uuid.New())
	assert.False(t, ok)
}
