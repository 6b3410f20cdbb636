package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoradi/memochat/internal/store"
	"github.com/smoradi/memochat/models"
)

type fakeHistory struct {
	users map[string]store.User
	chats map[string]store.Chat

	createdUsers int
	createdChats int
	appended     [][3]string // chatID, user content, assistant content

	appendErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		users: map[string]store.User{},
		chats: map[string]store.Chat{},
	}
}

func (f *fakeHistory) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeHistory) CreateUser(_ context.Context, email, name, passwordHash string) (string, error) {
	f.createdUsers++
	id := fmt.Sprintf("user-%d", f.createdUsers)
	f.users[email] = store.User{ID: id, Email: email, Name: name, PasswordHash: passwordHash}
	return id, nil
}

func (f *fakeHistory) GetChatByID(_ context.Context, id string) (store.Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return store.Chat{}, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeHistory) CreateChat(_ context.Context, userID, title string) (store.Chat, error) {
	f.createdChats++
	c := store.Chat{ID: fmt.Sprintf("chat-%d", f.createdChats), UserID: userID, Title: title}
	f.chats[c.ID] = c
	return c, nil
}

func (f *fakeHistory) AppendTurn(_ context.Context, chatID, userContent, assistantContent string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, [3]string{chatID, userContent, assistantContent})
	return nil
}

type fakeMemory struct {
	dim       int
	neighbors []models.MemoryDocument

	inserted     []models.MemoryDocument
	similarities [][]float32
	queried      [][]float32

	ensureErr error
	insertErr error
	findErr   error
}

func (f *fakeMemory) EnsureCollection(context.Context) error { return f.ensureErr }

func (f *fakeMemory) Insert(_ context.Context, doc models.MemoryDocument, similarity []float32) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, doc)
	f.similarities = append(f.similarities, similarity)
	return nil
}

func (f *fakeMemory) SimilarTo(_ context.Context, similarity []float32, _ int) ([]models.MemoryDocument, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.queried = append(f.queried, similarity)
	return f.neighbors, nil
}

func (f *fakeMemory) Dimension() int { return f.dim }

type fakeLLM struct {
	embedding []float32
	reply     string

	prompts [][]models.ChatMessage

	embedErr    error
	completeErr error
}

func (f *fakeLLM) ChatCompletion(_ context.Context, messages []models.ChatMessage) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	f.prompts = append(f.prompts, messages)
	return f.reply, nil
}

func (f *fakeLLM) CreateEmbedding(context.Context, string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestOrchestrator(t *testing.T, h *fakeHistory, m *fakeMemory, l *fakeLLM) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(h, m, l, quietLogger())
	require.NoError(t, err)
	return o
}

func TestTurnRejectsMissingFields(t *testing.T) {
	o := newTestOrchestrator(t, newFakeHistory(), &fakeMemory{dim: 8}, &fakeLLM{})

	for _, req := range []TurnRequest{
		{Message: "", UserEmail: "a@x.com"},
		{Message: "hi", UserEmail: ""},
	} {
		_, err := o.Turn(context.Background(), req)
		var te *Error
		require.ErrorAs(t, err, &te)
		assert.Equal(t, ErrorInvalidInput, te.Code)
		assert.Equal(t, StateReceived, te.State)
	}
}

func TestTurnFirstContactCreatesUserAndChat(t *testing.T) {
	h := newFakeHistory()
	m := &fakeMemory{dim: 8, neighbors: []models.MemoryDocument{
		{Content: "earlier note"},
		{Content: "another note"},
	}}
	l := &fakeLLM{embedding: []float32{1, 2, 3}, reply: "hello there"}
	o := newTestOrchestrator(t, h, m, l)

	res, err := o.Turn(context.Background(), TurnRequest{Message: "Hello", UserEmail: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Reply)
	assert.NotEmpty(t, res.ChatID)

	assert.Equal(t, 1, h.createdUsers)
	assert.Equal(t, 1, h.createdChats)
	assert.Equal(t, guestName, h.users["a@x.com"].Name)

	// transcript: user then assistant, once
	require.Len(t, h.appended, 1)
	assert.Equal(t, [3]string{res.ChatID, "Hello", "hello there"}, h.appended[0])

	// memory documents: user role then assistant role, same turn embedding
	require.Len(t, m.inserted, 2)
	assert.Equal(t, models.RoleUser, m.inserted[0].Role)
	assert.Equal(t, "Hello", m.inserted[0].Content)
	assert.Equal(t, models.RoleAssistant, m.inserted[1].Role)
	assert.Equal(t, "hello there", m.inserted[1].Content)
	assert.Equal(t, m.inserted[0].Vector, m.inserted[1].Vector)
	assert.NotEqual(t, m.inserted[0].ID, m.inserted[1].ID)

	// similarity vectors match the declared dimension
	for _, sim := range m.similarities {
		assert.Len(t, sim, 8)
	}
	require.Len(t, m.queried, 1)
	assert.Len(t, m.queried[0], 8)

	// prompt: fixed system instruction, context block, user message
	require.Len(t, l.prompts, 1)
	prompt := l.prompts[0]
	require.Len(t, prompt, 3)
	assert.Equal(t, models.RoleSystem, prompt[0].Role)
	assert.Equal(t, systemPrompt, prompt[0].Content)
	assert.Equal(t, "Context:\nearlier note\nanother note", prompt[1].Content)
	assert.Equal(t, models.RoleUser, prompt[2].Role)
	assert.Equal(t, "Hello", prompt[2].Content)
}

func TestTurnReusesExistingUserAndChat(t *testing.T) {
	h := newFakeHistory()
	h.users["a@x.com"] = store.User{ID: "user-9", Email: "a@x.com"}
	h.chats["chat-9"] = store.Chat{ID: "chat-9", UserID: "user-9", Title: "old"}
	m := &fakeMemory{dim: 4}
	l := &fakeLLM{embedding: []float32{1}, reply: "ok"}
	o := newTestOrchestrator(t, h, m, l)

	res, err := o.Turn(context.Background(), TurnRequest{Message: "again", ChatID: "chat-9", UserEmail: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "chat-9", res.ChatID)
	assert.Zero(t, h.createdUsers)
	assert.Zero(t, h.createdChats)
}

func TestTurnUnresolvedChatIDCreatesNewChat(t *testing.T) {
	h := newFakeHistory()
	h.users["a@x.com"] = store.User{ID: "user-9", Email: "a@x.com"}
	m := &fakeMemory{dim: 4}
	l := &fakeLLM{embedding: []float32{1}, reply: "ok"}
	o := newTestOrchestrator(t, h, m, l)

	res, err := o.Turn(context.Background(), TurnRequest{Message: "again", ChatID: "gone", UserEmail: "a@x.com"})
	require.NoError(t, err)
	assert.NotEqual(t, "gone", res.ChatID)
	assert.Equal(t, 1, h.createdChats)
}

func TestTurnMemoryWriteFailureIsBestEffort(t *testing.T) {
	h := newFakeHistory()
	m := &fakeMemory{dim: 4, insertErr: errors.New("astra down"), ensureErr: errors.New("astra down")}
	l := &fakeLLM{embedding: []float32{1}, reply: "still fine"}
	o := newTestOrchestrator(t, h, m, l)

	res, err := o.Turn(context.Background(), TurnRequest{Message: "hi", UserEmail: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "still fine", res.Reply)
	assert.NotEmpty(t, res.ChatID)

	var failed int
	for _, b := range res.Memory {
		if b.Failed() {
			failed++
		}
	}
	assert.Equal(t, 3, failed)
	// transcript still written
	require.Len(t, h.appended, 1)
}

func TestTurnEmptyCompletionFallsBack(t *testing.T) {
	h := newFakeHistory()
	m := &fakeMemory{dim: 4}
	l := &fakeLLM{embedding: []float32{1}, reply: ""}
	o := newTestOrchestrator(t, h, m, l)

	res, err := o.Turn(context.Background(), TurnRequest{Message: "hi", UserEmail: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, res.Reply)
	// the fallback is what gets persisted and memorized
	assert.Equal(t, fallbackReply, h.appended[0][2])
	assert.Equal(t, fallbackReply, m.inserted[1].Content)
}

func TestTurnFatalSteps(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *fakeHistory, m *fakeMemory, l *fakeLLM)
		state State
	}{
		{
			name:  "embedding failure",
			setup: func(h *fakeHistory, m *fakeMemory, l *fakeLLM) { l.embedErr = errors.New("boom") },
			state: StateConversationResolved,
		},
		{
			name:  "retrieval failure",
			setup: func(h *fakeHistory, m *fakeMemory, l *fakeLLM) { m.findErr = errors.New("boom") },
			state: StateEmbedded,
		},
		{
			name:  "completion failure",
			setup: func(h *fakeHistory, m *fakeMemory, l *fakeLLM) { l.completeErr = errors.New("boom") },
			state: StateContextRetrieved,
		},
		{
			name:  "persistence failure",
			setup: func(h *fakeHistory, m *fakeMemory, l *fakeLLM) { h.appendErr = errors.New("boom") },
			state: StateCompleted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newFakeHistory()
			m := &fakeMemory{dim: 4}
			l := &fakeLLM{embedding: []float32{1}, reply: "ok"}
			tc.setup(h, m, l)
			o := newTestOrchestrator(t, h, m, l)

			_, err := o.Turn(context.Background(), TurnRequest{Message: "hi", UserEmail: "a@x.com"})
			var te *Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, ErrorUpstream, te.Code)
			assert.Equal(t, tc.state, te.State)
		})
	}
}

func TestNewOrchestratorRejectsNilCollaborators(t *testing.T) {
	_, err := NewOrchestrator(nil, &fakeMemory{}, &fakeLLM{}, nil)
	assert.Error(t, err)
	_, err = NewOrchestrator(newFakeHistory(), nil, &fakeLLM{}, nil)
	assert.Error(t, err)
	_, err = NewOrchestrator(newFakeHistory(), &fakeMemory{}, nil, nil)
	assert.Error(t, err)
}
