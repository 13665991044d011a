package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/orbita-social/backend/internal/models"
	"github.com/orbita-social/backend/internal/services"
)

// ChatHandler handles HTTP requests related to chats and messages
type ChatHandler struct {
	chatService services.ChatService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// RegisterChatRoutes registers chat-related routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/chats", h.CreateChat)
	g.GET("/chats", h.GetChats)
	g.GET("/chats/direct/:userId", h.GetDirectChat)
	g.POST("/chats/message", h.SendMessage)
	g.POST("/chats/message/reply", h.ReplyToMessage)
	g.DELETE("/chats/message/:messageId", h.DeleteMessage)
	g.GET("/chats/:chatId", h.GetChat)
	g.GET("/chats/:chatId/messages", h.GetMessages)
	g.PATCH("/chats/:chatId/read", h.MarkAsRead)
}

// CreateChat finds or creates a chat for the given participants
func (h *ChatHandler) CreateChat(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	chat, err := h.chatService.FindOrCreateChat(c.Request().Context(), userID, req.ParticipantIDs, req.ChatType)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, chat)
}

// GetChats lists the caller's chats by most recent activity
func (h *ChatHandler) GetChats(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	chats, err := h.chatService.GetUserChats(c.Request().Context(), userID, page, limit)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, chats)
}

// GetChat fetches one chat the caller participates in
func (h *ChatHandler) GetChat(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	chat, err := h.chatService.GetChatByID(c.Request().Context(), c.Param("chatId"), userID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, chat)
}

// GetDirectChat gets or creates the direct chat with another user
func (h *ChatHandler) GetDirectChat(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	otherID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	chat, err := h.chatService.GetOrCreateDirectChat(c.Request().Context(), userID, uint(otherID))
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, chat)
}

// SendMessage sends a message into a chat
func (h *ChatHandler) SendMessage(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	message, err := h.chatService.SendMessage(c.Request().Context(), userID, &req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, message)
}

// ReplyToMessage sends a message referencing an earlier one in the same chat
func (h *ChatHandler) ReplyToMessage(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ReplyTo == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reply_to message ID is required")
	}

	message, err := h.chatService.ReplyToMessage(c.Request().Context(), userID, &req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, message)
}

// GetMessages returns paginated history for a chat
func (h *ChatHandler) GetMessages(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	messages, err := h.chatService.GetChatMessages(c.Request().Context(), c.Param("chatId"), userID, page, limit)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, messages)
}

// MarkAsRead marks everything in the chat read for the caller
func (h *ChatHandler) MarkAsRead(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.chatService.MarkAsRead(c.Request().Context(), c.Param("chatId"), userID); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Messages marked as read"})
}

// DeleteMessage tombstones a message sent by the caller
func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.chatService.DeleteMessage(c.Request().Context(), c.Param("messageId"), userID); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Message deleted successfully"})
}

// mapServiceError converts a typed service error into an HTTP error
func mapServiceError(err error) error {
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(appErr.Code, appErr.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
