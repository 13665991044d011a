package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/orbita-social/backend/internal/models"
	"github.com/orbita-social/backend/internal/services"
)

// stubChatService returns canned results for the handler under test
type stubChatService struct {
	findOrCreateChat func(creatorID uint, participantIDs []uint, chatType string) (*models.ChatView, error)
	getChatByID      func(chatID string, userID uint) (*models.ChatView, error)
	sendMessage      func(senderID uint, req *models.SendMessageRequest) (*models.MessageView, error)
	markAsRead       func(chatID string, userID uint) error
	deleteMessage    func(messageID string, userID uint) error
}

func (s *stubChatService) FindOrCreateChat(_ context.Context, creatorID uint, participantIDs []uint, chatType string) (*models.ChatView, error) {
	return s.findOrCreateChat(creatorID, participantIDs, chatType)
}

func (s *stubChatService) GetUserChats(context.Context, uint, int, int) ([]models.ChatView, error) {
	return []models.ChatView{}, nil
}

func (s *stubChatService) GetChatByID(_ context.Context, chatID string, userID uint) (*models.ChatView, error) {
	return s.getChatByID(chatID, userID)
}

func (s *stubChatService) GetOrCreateDirectChat(_ context.Context, userID, otherID uint) (*models.ChatView, error) {
	return &models.ChatView{ID: "direct", ChatType: models.ChatTypeDirect}, nil
}

func (s *stubChatService) SendMessage(_ context.Context, senderID uint, req *models.SendMessageRequest) (*models.MessageView, error) {
	return s.sendMessage(senderID, req)
}

func (s *stubChatService) ReplyToMessage(_ context.Context, senderID uint, req *models.SendMessageRequest) (*models.MessageView, error) {
	return s.sendMessage(senderID, req)
}

func (s *stubChatService) GetChatMessages(context.Context, string, uint, int, int) ([]models.MessageView, error) {
	return []models.MessageView{}, nil
}

func (s *stubChatService) MarkAsRead(_ context.Context, chatID string, userID uint) error {
	return s.markAsRead(chatID, userID)
}

func (s *stubChatService) DeleteMessage(_ context.Context, messageID string, userID uint) error {
	return s.deleteMessage(messageID, userID)
}

func newChatContext(method, target, body string, userID uint) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("userID", userID)
	}
	return c, rec
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an HTTP error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return httpErr.Code
}

func TestCreateChatSuccess(t *testing.T) {
	var gotParticipants []uint
	handler := NewChatHandler(&stubChatService{
		findOrCreateChat: func(creatorID uint, participantIDs []uint, chatType string) (*models.ChatView, error) {
			gotParticipants = participantIDs
			return &models.ChatView{ID: "abc", ChatType: models.ChatTypeDirect}, nil
		},
	})

	c, rec := newChatContext(http.MethodPost, "/api/v1/chats", `{"participant_ids":[2]}`, 1)
	if err := handler.CreateChat(c); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusCreated)
	}
	if len(gotParticipants) != 1 || gotParticipants[0] != 2 {
		t.Errorf("participants passed to service: %v", gotParticipants)
	}

	var view models.ChatView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.ID != "abc" {
		t.Errorf("chat id: got %q", view.ID)
	}
}

func TestCreateChatRejectsUnauthenticated(t *testing.T) {
	handler := NewChatHandler(&stubChatService{})

	c, _ := newChatContext(http.MethodPost, "/api/v1/chats", `{"participant_ids":[2]}`, 0)
	if got := httpStatus(t, handler.CreateChat(c)); got != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", got, http.StatusUnauthorized)
	}
}

func TestCreateChatRejectsEmptyParticipants(t *testing.T) {
	handler := NewChatHandler(&stubChatService{})

	c, _ := newChatContext(http.MethodPost, "/api/v1/chats", `{"participant_ids":[]}`, 1)
	if got := httpStatus(t, handler.CreateChat(c)); got != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", got, http.StatusBadRequest)
	}
}

func TestGetChatMapsServiceErrors(t *testing.T) {
	handler := NewChatHandler(&stubChatService{
		getChatByID: func(string, uint) (*models.ChatView, error) {
			return nil, services.ErrNotFound("chat not found")
		},
	})

	c, _ := newChatContext(http.MethodGet, "/api/v1/chats/x", "", 1)
	c.SetParamNames("chatId")
	c.SetParamValues("x")

	if got := httpStatus(t, handler.GetChat(c)); got != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", got, http.StatusNotFound)
	}
}

func TestSendMessageSuccess(t *testing.T) {
	handler := NewChatHandler(&stubChatService{
		sendMessage: func(senderID uint, req *models.SendMessageRequest) (*models.MessageView, error) {
			if senderID != 7 {
				t.Errorf("sender: got %d, want 7", senderID)
			}
			return &models.MessageView{ChatID: req.ChatID, Text: req.Text}, nil
		},
	})

	c, rec := newChatContext(http.MethodPost, "/api/v1/chats/message", `{"chat_id":"c1","text":"hello"}`, 7)
	if err := handler.SendMessage(c); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestSendMessageValidatesAttachmentType(t *testing.T) {
	handler := NewChatHandler(&stubChatService{})

	body := `{"chat_id":"c1","attachments":[{"type":"gif","url":"https://cdn.example.com/a.gif"}]}`
	c, _ := newChatContext(http.MethodPost, "/api/v1/chats/message", body, 1)
	if got := httpStatus(t, handler.SendMessage(c)); got != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", got, http.StatusBadRequest)
	}
}

func TestReplyToMessageRequiresTarget(t *testing.T) {
	handler := NewChatHandler(&stubChatService{})

	c, _ := newChatContext(http.MethodPost, "/api/v1/chats/message/reply", `{"chat_id":"c1","text":"hi"}`, 1)
	if got := httpStatus(t, handler.ReplyToMessage(c)); got != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", got, http.StatusBadRequest)
	}
}

func TestMarkAsReadSuccess(t *testing.T) {
	var marked string
	handler := NewChatHandler(&stubChatService{
		markAsRead: func(chatID string, userID uint) error {
			marked = chatID
			return nil
		},
	})

	c, rec := newChatContext(http.MethodPatch, "/api/v1/chats/c1/read", "", 2)
	c.SetParamNames("chatId")
	c.SetParamValues("c1")

	if err := handler.MarkAsRead(c); err != nil {
		t.Fatalf("MarkAsRead failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if marked != "c1" {
		t.Errorf("chat marked: got %q, want c1", marked)
	}
}

func TestDeleteMessageMapsNotFound(t *testing.T) {
	handler := NewChatHandler(&stubChatService{
		deleteMessage: func(string, uint) error {
			return services.ErrNotFound("message not found")
		},
	})

	c, _ := newChatContext(http.MethodDelete, "/api/v1/chats/message/m1", "", 3)
	c.SetParamNames("messageId")
	c.SetParamValues("m1")

	if got := httpStatus(t, handler.DeleteMessage(c)); got != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", got, http.StatusNotFound)
	}
}

func TestGetDirectChatValidatesUserID(t *testing.T) {
	handler := NewChatHandler(&stubChatService{})

	c, _ := newChatContext(http.MethodGet, "/api/v1/chats/direct/notanumber", "", 1)
	c.SetParamNames("userId")
	c.SetParamValues("notanumber")

	if got := httpStatus(t, handler.GetDirectChat(c)); got != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", got, http.StatusBadRequest)
	}
}
