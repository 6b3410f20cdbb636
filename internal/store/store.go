package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Message roles persisted in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// User is an account row. Email is the identity key.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Chat is a conversation owned by one user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one transcript row. Ordering is by CreatedAt ascending.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatPreview is a chat plus its most recent message, for list views.
type ChatPreview struct {
	Chat
	Messages []Message `json:"messages"`
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (email, name, password_hash) VALUES ($1,$2,$3) RETURNING id`,
		email, name, passwordHash).Scan(&id)
	return id, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email=$1`,
		email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// Chat operations

func (s *Store) CreateChat(ctx context.Context, userID, title string) (Chat, error) {
	var c Chat
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO chats (user_id, title) VALUES ($1,$2) RETURNING id, user_id, title, created_at, updated_at`,
		userID, title).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) GetChatByID(ctx context.Context, id string) (Chat, error) {
	var c Chat
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chats WHERE id=$1`,
		id).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetChatMessages returns the chat transcript in creation order.
func (s *Store) GetChatMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id=$1 ORDER BY created_at ASC`,
		chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListChatsByUser returns a user's chats newest first, each carrying only its
// most recent message as a preview.
func (s *Store) ListChatsByUser(ctx context.Context, userID string) ([]ChatPreview, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at,
		        m.id, m.role, m.content, m.created_at
		   FROM chats c
		   LEFT JOIN LATERAL (
		        SELECT id, role, content, created_at FROM messages
		         WHERE chat_id = c.id ORDER BY created_at DESC LIMIT 1
		   ) m ON true
		  WHERE c.user_id=$1
		  ORDER BY c.created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChatPreview
	for rows.Next() {
		var p ChatPreview
		var mid, mrole, mcontent sql.NullString
		var mcreated sql.NullTime
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.CreatedAt, &p.UpdatedAt,
			&mid, &mrole, &mcontent, &mcreated); err != nil {
			return nil, err
		}
		p.Messages = []Message{}
		if mid.Valid {
			p.Messages = append(p.Messages, Message{
				ID: mid.String, ChatID: p.ID, Role: mrole.String,
				Content: mcontent.String, CreatedAt: mcreated.Time,
			})
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RenameChat(ctx context.Context, id, title string) (Chat, error) {
	var c Chat
	err := s.DB.QueryRowContext(ctx,
		`UPDATE chats SET title=$2, updated_at=now() WHERE id=$1 RETURNING id, user_id, title, created_at, updated_at`,
		id, title).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// DeleteChat removes the transcript rows and then the chat row, child before
// parent. Memory documents in the vector store are not touched.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, id); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, id)
	return err
}

// Message operations

func (s *Store) AppendMessage(ctx context.Context, chatID, role, content string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO messages (chat_id, role, content) VALUES ($1,$2,$3) RETURNING id`,
		chatID, role, content).Scan(&id)
	return id, err
}

// AppendTurn persists the user message and the assistant reply for one turn,
// in that order.
func (s *Store) AppendTurn(ctx context.Context, chatID, userContent, assistantContent string) error {
	if _, err := s.AppendMessage(ctx, chatID, RoleUser, userContent); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}
	if _, err := s.AppendMessage(ctx, chatID, RoleAssistant, assistantContent); err != nil {
		return fmt.Errorf("append assistant message: %w", err)
	}
	return nil
}
