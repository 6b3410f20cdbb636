package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smoradi/memochat/internal/store"
	"github.com/smoradi/memochat/internal/vector"
	"github.com/smoradi/memochat/models"
	"github.com/smoradi/memochat/provider"
)

// State names how far a turn has progressed. A turn either reaches
// StateResponded or fails at the state it was in when the error occurred.
type State string

const (
	StateReceived             State = "received"
	StateIdentified           State = "identified"
	StateConversationResolved State = "conversation_resolved"
	StateEmbedded             State = "embedded"
	StateContextRetrieved     State = "context_retrieved"
	StateCompleted            State = "completed"
	StatePersisted            State = "persisted"
	StateResponded            State = "responded"
)

const (
	titlePrefixLen  = 30
	guestName       = "Guest User"
	placeholderHash = "placeholder"
	contextTopK     = 3

	systemPrompt  = "You are a smart AI assistant, answer conversationally."
	fallbackReply = "Sorry, I couldn't generate a reply."
)

// HistoryStore is the relational side of a turn: the authoritative transcript.
type HistoryStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string) (string, error)
	GetChatByID(ctx context.Context, id string) (store.Chat, error)
	CreateChat(ctx context.Context, userID, title string) (store.Chat, error)
	AppendTurn(ctx context.Context, chatID, userContent, assistantContent string) error
}

// MemoryStore is the vector side of a turn. Writes are best-effort; losing a
// memory document must not block the reply.
type MemoryStore interface {
	EnsureCollection(ctx context.Context) error
	Insert(ctx context.Context, doc models.MemoryDocument, similarity []float32) error
	SimilarTo(ctx context.Context, similarity []float32, limit int) ([]models.MemoryDocument, error)
	Dimension() int
}

// BestEffort records the outcome of a write whose failure must not fail the
// enclosing turn.
type BestEffort struct {
	Op  string
	Err error
}

func (b BestEffort) Failed() bool { return b.Err != nil }

// TurnRequest is one inbound message. ChatID is optional; UserEmail is the
// caller-supplied identity key.
type TurnRequest struct {
	Message   string
	ChatID    string
	UserEmail string
}

// TurnResult is a completed turn. Memory carries the best-effort outcomes of
// the vector-store writes for this turn.
type TurnResult struct {
	Reply  string
	ChatID string
	Memory []BestEffort
}

// Orchestrator sequences one message into a persisted, context-augmented
// assistant reply. It is sequential within a turn and holds no cross-turn
// state; concurrent turns on the same chat are not coordinated.
type Orchestrator struct {
	history HistoryStore
	memory  MemoryStore
	llm     provider.Provider
	logger  *log.Logger
	topK    int
}

func NewOrchestrator(history HistoryStore, memory MemoryStore, llm provider.Provider, logger *log.Logger) (*Orchestrator, error) {
	if history == nil {
		return nil, errors.New("chat: history store must not be nil")
	}
	if memory == nil {
		return nil, errors.New("chat: memory store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("chat: llm provider must not be nil")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[TURN] ", log.LstdFlags)
	}
	return &Orchestrator{
		history: history,
		memory:  memory,
		llm:     llm,
		logger:  logger,
		topK:    contextTopK,
	}, nil
}

// Turn runs the full pipeline for one message. Resolver, embedding,
// retrieval, completion and transcript failures are fatal; memory-document
// writes and the collection-existence probe are logged and swallowed.
func (o *Orchestrator) Turn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	started := time.Now()
	res, err := o.turn(ctx, req)
	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			observeTurn(string(te.State), time.Since(started))
		} else {
			observeTurn("failed", time.Since(started))
		}
		return TurnResult{}, err
	}
	observeTurn(string(StateResponded), time.Since(started))
	return res, nil
}

func (o *Orchestrator) turn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	state := StateReceived
	if req.Message == "" || req.UserEmail == "" {
		return TurnResult{}, newError(ErrorInvalidInput, state, "missing message or userId", nil)
	}

	user, err := o.resolveUser(ctx, req.UserEmail)
	if err != nil {
		return TurnResult{}, newError(ErrorUpstream, state, "resolve user", err)
	}
	state = StateIdentified

	conv, err := o.resolveChat(ctx, req.ChatID, user.User, req.Message)
	if err != nil {
		return TurnResult{}, newError(ErrorUpstream, state, "resolve chat", err)
	}
	state = StateConversationResolved

	embedding, err := o.llm.CreateEmbedding(ctx, req.Message)
	if err != nil {
		return TurnResult{}, newError(ErrorUpstream, state, "create embedding", err)
	}
	storage := vector.StorageVector(embedding)
	similarity := vector.SimilarityVector(embedding, o.memory.Dimension())

	var memory []BestEffort
	memory = append(memory, o.bestEffort("ensure collection", o.memory.EnsureCollection(ctx)))
	memory = append(memory, o.bestEffort("insert user memory", o.memory.Insert(ctx, models.MemoryDocument{
		ID:      uuid.NewString(),
		ChatID:  conv.Chat.ID,
		UserID:  user.User.ID,
		Role:    models.RoleUser,
		Content: req.Message,
		Vector:  storage,
	}, similarity)))
	state = StateEmbedded

	neighbors, err := o.memory.SimilarTo(ctx, similarity, o.topK)
	if err != nil {
		return TurnResult{}, newError(ErrorUpstream, state, "retrieve context", err)
	}
	contextBlock := joinContents(neighbors)
	state = StateContextRetrieved

	reply, err := o.llm.ChatCompletion(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleSystem, Content: "Context:\n" + contextBlock},
		{Role: models.RoleUser, Content: req.Message},
	})
	if err != nil {
		return TurnResult{}, newError(ErrorUpstream, state, "chat completion", err)
	}
	if reply == "" {
		reply = fallbackReply
	}
	state = StateCompleted

	if err := o.history.AppendTurn(ctx, conv.Chat.ID, req.Message, reply); err != nil {
		// The completion was already spent; the caller still sees this as an
		// error. Documented behavior, no rollback.
		return TurnResult{}, newError(ErrorUpstream, state, "persist transcript", err)
	}

	// The assistant document reuses the turn's embedding; no second embedding
	// call is made.
	memory = append(memory, o.bestEffort("insert assistant memory", o.memory.Insert(ctx, models.MemoryDocument{
		ID:      uuid.NewString(),
		ChatID:  conv.Chat.ID,
		UserID:  user.User.ID,
		Role:    models.RoleAssistant,
		Content: reply,
		Vector:  storage,
	}, similarity)))

	return TurnResult{Reply: reply, ChatID: conv.Chat.ID, Memory: memory}, nil
}

func (o *Orchestrator) bestEffort(op string, err error) BestEffort {
	if err != nil {
		o.logger.Printf("%s failed (continuing): %v", op, err)
	}
	return BestEffort{Op: op, Err: err}
}

func joinContents(docs []models.MemoryDocument) string {
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	return strings.Join(contents, "\n")
}
