package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smoradi/memochat/internal/store"
)

// Outcome distinguishes a lookup hit from a lazy creation.
type Outcome int

const (
	Found Outcome = iota
	Created
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "found"
}

// UserResolution is the result of mapping an email to a durable user record.
type UserResolution struct {
	User    store.User
	Outcome Outcome
}

// ChatResolution is the result of mapping an optional chat id to a durable
// conversation record.
type ChatResolution struct {
	Chat    store.Chat
	Outcome Outcome
}

// resolveUser returns the user for the given email, creating a placeholder
// account on first contact. At most one insert.
func (o *Orchestrator) resolveUser(ctx context.Context, email string) (UserResolution, error) {
	u, err := o.history.GetUserByEmail(ctx, email)
	if err == nil {
		return UserResolution{User: u, Outcome: Found}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return UserResolution{}, fmt.Errorf("lookup user %q: %w", email, err)
	}

	id, err := o.history.CreateUser(ctx, email, guestName, placeholderHash)
	if err != nil {
		return UserResolution{}, fmt.Errorf("create placeholder user %q: %w", email, err)
	}
	return UserResolution{
		User:    store.User{ID: id, Email: email, Name: guestName},
		Outcome: Created,
	}, nil
}

// resolveChat returns the chat for the given id when it resolves, otherwise
// creates a new chat owned by the user, titled from the message. An id that
// does not resolve falls through to creation rather than erroring. At most
// one insert.
func (o *Orchestrator) resolveChat(ctx context.Context, chatID string, user store.User, message string) (ChatResolution, error) {
	if chatID != "" {
		c, err := o.history.GetChatByID(ctx, chatID)
		if err == nil {
			return ChatResolution{Chat: c, Outcome: Found}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return ChatResolution{}, fmt.Errorf("lookup chat %q: %w", chatID, err)
		}
	}

	c, err := o.history.CreateChat(ctx, user.ID, TitleFromMessage(message))
	if err != nil {
		return ChatResolution{}, fmt.Errorf("create chat: %w", err)
	}
	return ChatResolution{Chat: c, Outcome: Created}, nil
}

// TitleFromMessage derives a chat title from the first characters of the
// opening message.
func TitleFromMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= titlePrefixLen {
		return message
	}
	return string(runes[:titlePrefixLen])
}
