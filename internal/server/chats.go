package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smoradi/memochat/internal/chat"
	"github.com/smoradi/memochat/internal/store"
)

// TurnRunner runs one message through the orchestration pipeline.
type TurnRunner interface {
	Turn(ctx context.Context, req chat.TurnRequest) (chat.TurnResult, error)
}

type ChatHandler struct {
	Store *store.Store
	Orch  TurnRunner
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.turn)
	g.POST("/chat/new", h.create)
	g.GET("/chat/:chatId", h.get)
	g.PATCH("/chat/:chatId", h.rename)
	g.DELETE("/chat/:chatId", h.remove)
	g.GET("/chats/:userId", h.list)
}

// turn runs the full message pipeline: resolve user and chat, embed, retrieve
// context, complete, persist.
func (h *ChatHandler) turn(c echo.Context) error {
	var req ChatTurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.Orch.Turn(c.Request().Context(), chat.TurnRequest{
		Message:   req.Message,
		ChatID:    req.ChatID,
		UserEmail: req.UserID,
	})
	if err != nil {
		var te *chat.Error
		if errors.As(err, &te) && te.Code == chat.ErrorInvalidInput {
			return echo.NewHTTPError(http.StatusBadRequest, "Missing message or userId")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ChatTurnResponse{Reply: res.Reply, ChatID: res.ChatID})
}

// create makes an empty chat for an existing user. Unknown emails are a 404
// here, unlike the turn pipeline which creates placeholder accounts.
func (h *ChatHandler) create(c echo.Context) error {
	var req NewChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing userId")
	}

	user, err := h.Store.GetUserByEmail(c.Request().Context(), req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	title := req.Title
	if title == "" {
		title = "New Chat"
	}
	created, err := h.Store.CreateChat(c.Request().Context(), user.ID, title)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, NewChatResponse{ChatID: created.ID, Message: "Chat created"})
}

func (h *ChatHandler) get(c echo.Context) error {
	chatID := c.Param("chatId")
	if chatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Chat ID missing")
	}

	ch, err := h.Store.GetChatByID(c.Request().Context(), chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "Chat not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	msgs, err := h.Store.GetChatMessages(c.Request().Context(), chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(http.StatusOK, ChatDetailResponse{Chat: ch, Messages: msgs})
}

func (h *ChatHandler) rename(c echo.Context) error {
	chatID := c.Param("chatId")
	var req RenameChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.Store.RenameChat(c.Request().Context(), chatID, req.Title)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

// remove deletes the transcript and then the chat row. Memory documents in
// the vector store are left behind.
func (h *ChatHandler) remove(c echo.Context) error {
	chatID := c.Param("chatId")
	if err := h.Store.DeleteChat(c.Request().Context(), chatID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// list returns a user's chats newest first, each with only its latest message
// as a preview. The path param is the account email.
func (h *ChatHandler) list(c echo.Context) error {
	email := c.Param("userId")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "User ID missing")
	}

	user, err := h.Store.GetUserByEmail(c.Request().Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	chats, err := h.Store.ListChatsByUser(c.Request().Context(), user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if chats == nil {
		chats = []store.ChatPreview{}
	}
	return c.JSON(http.StatusOK, chats)
}
