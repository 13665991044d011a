package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/orbita-social/backend/internal/models"
	"github.com/orbita-social/backend/internal/services"
)

// stubChatService lets each test pin down exactly the calls it expects
type stubChatService struct {
	getChatByID  func(chatID string, userID uint) (*models.ChatView, error)
	sendMessage  func(senderID uint, req *models.SendMessageRequest) (*models.MessageView, error)
	markAsRead   func(chatID string, userID uint) error
	markedChats  []string
	sentMessages []*models.SendMessageRequest
}

func (s *stubChatService) FindOrCreateChat(context.Context, uint, []uint, string) (*models.ChatView, error) {
	return nil, services.ErrInternal("not expected")
}

func (s *stubChatService) GetUserChats(context.Context, uint, int, int) ([]models.ChatView, error) {
	return nil, services.ErrInternal("not expected")
}

func (s *stubChatService) GetChatByID(_ context.Context, chatID string, userID uint) (*models.ChatView, error) {
	if s.getChatByID != nil {
		return s.getChatByID(chatID, userID)
	}
	return &models.ChatView{ID: chatID}, nil
}

func (s *stubChatService) GetOrCreateDirectChat(context.Context, uint, uint) (*models.ChatView, error) {
	return nil, services.ErrInternal("not expected")
}

func (s *stubChatService) SendMessage(_ context.Context, senderID uint, req *models.SendMessageRequest) (*models.MessageView, error) {
	s.sentMessages = append(s.sentMessages, req)
	if s.sendMessage != nil {
		return s.sendMessage(senderID, req)
	}
	return &models.MessageView{ChatID: req.ChatID, Text: req.Text}, nil
}

func (s *stubChatService) ReplyToMessage(context.Context, uint, *models.SendMessageRequest) (*models.MessageView, error) {
	return nil, services.ErrInternal("not expected")
}

func (s *stubChatService) GetChatMessages(context.Context, string, uint, int, int) ([]models.MessageView, error) {
	return nil, services.ErrInternal("not expected")
}

func (s *stubChatService) MarkAsRead(_ context.Context, chatID string, userID uint) error {
	s.markedChats = append(s.markedChats, chatID)
	if s.markAsRead != nil {
		return s.markAsRead(chatID, userID)
	}
	return nil
}

func (s *stubChatService) DeleteMessage(context.Context, string, uint) error {
	return nil
}

func frame(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func lastEvent(t *testing.T, sess *memorySession) Envelope {
	t.Helper()
	events := sess.received()
	if len(events) == 0 {
		t.Fatalf("no frames received")
	}
	return events[len(events)-1]
}

func TestGatewayJoinChatAdmitsParticipant(t *testing.T) {
	hub := NewHub()
	gateway := NewGateway(hub, &stubChatService{})
	sess := &memorySession{userID: 1}

	gateway.Dispatch(sess, frame(t, CommandJoinChat, joinChatPayload{ChatID: "c1"}))

	if !hub.InRoom("c1", sess) {
		t.Fatalf("session not admitted to room")
	}
	if got := lastEvent(t, sess); got.Event != EventChatJoined {
		t.Errorf("ack event: got %q, want %q", got.Event, EventChatJoined)
	}
}

func TestGatewayJoinChatRejectsOutsider(t *testing.T) {
	hub := NewHub()
	gateway := NewGateway(hub, &stubChatService{
		getChatByID: func(string, uint) (*models.ChatView, error) {
			return nil, services.ErrNotFound("chat not found")
		},
	})
	sess := &memorySession{userID: 9}

	gateway.Dispatch(sess, frame(t, CommandJoinChat, joinChatPayload{ChatID: "c1"}))

	if hub.InRoom("c1", sess) {
		t.Fatalf("outsider admitted to room")
	}
	if got := lastEvent(t, sess); got.Event != EventError {
		t.Errorf("expected error event, got %q", got.Event)
	}
}

func TestGatewayLeaveChat(t *testing.T) {
	hub := NewHub()
	gateway := NewGateway(hub, &stubChatService{})
	sess := &memorySession{userID: 1}
	hub.Join("c1", sess)

	gateway.Dispatch(sess, frame(t, CommandLeaveChat, leaveChatPayload{ChatID: "c1"}))

	if hub.InRoom("c1", sess) {
		t.Fatalf("session still in room after leave")
	}
}

func TestGatewaySendMessageDelegatesToService(t *testing.T) {
	hub := NewHub()
	stub := &stubChatService{}
	gateway := NewGateway(hub, stub)
	sess := &memorySession{userID: 1}

	gateway.Dispatch(sess, frame(t, CommandSendMessage, models.SendMessageRequest{ChatID: "c1", Text: "hello"}))

	if len(stub.sentMessages) != 1 {
		t.Fatalf("SendMessage calls: got %d, want 1", len(stub.sentMessages))
	}
	if stub.sentMessages[0].Text != "hello" {
		t.Errorf("text: got %q", stub.sentMessages[0].Text)
	}
	// No direct reply: the service broadcast carries the populated message
	if len(sess.received()) != 0 {
		t.Errorf("unexpected direct frames: %v", sess.received())
	}
}

func TestGatewaySendMessageValidatesPayload(t *testing.T) {
	hub := NewHub()
	stub := &stubChatService{}
	gateway := NewGateway(hub, stub)
	sess := &memorySession{userID: 1}

	// Missing chat id
	gateway.Dispatch(sess, frame(t, CommandSendMessage, models.SendMessageRequest{Text: "hi"}))
	// No content at all
	gateway.Dispatch(sess, frame(t, CommandSendMessage, models.SendMessageRequest{ChatID: "c1"}))

	if len(stub.sentMessages) != 0 {
		t.Fatalf("invalid payloads reached the service: %d", len(stub.sentMessages))
	}
	events := sess.received()
	if len(events) != 2 {
		t.Fatalf("expected 2 error events, got %d", len(events))
	}
	for _, env := range events {
		if env.Event != EventError {
			t.Errorf("expected error event, got %q", env.Event)
		}
	}
}

func TestGatewayMarkAsRead(t *testing.T) {
	hub := NewHub()
	stub := &stubChatService{}
	gateway := NewGateway(hub, stub)
	sess := &memorySession{userID: 2}

	gateway.Dispatch(sess, frame(t, CommandMarkAsRead, markAsReadPayload{ChatID: "c1"}))

	if len(stub.markedChats) != 1 || stub.markedChats[0] != "c1" {
		t.Fatalf("MarkAsRead calls: %v", stub.markedChats)
	}
}

func TestGatewayTypingExcludesTypist(t *testing.T) {
	hub := NewHub()
	gateway := NewGateway(hub, &stubChatService{})
	typist := &memorySession{userID: 1}
	other := &memorySession{userID: 2}
	hub.Join("c1", typist)
	hub.Join("c1", other)

	gateway.Dispatch(typist, frame(t, CommandTyping, typingPayload{ChatID: "c1", IsTyping: true}))

	if len(typist.received()) != 0 {
		t.Errorf("typist received their own typing event")
	}
	events := other.received()
	if len(events) != 1 || events[0].Event != services.EventUserTyping {
		t.Fatalf("other session events: %v", events)
	}
	var broadcast typingBroadcast
	if err := json.Unmarshal(events[0].Data, &broadcast); err != nil {
		t.Fatalf("decode typing broadcast: %v", err)
	}
	if broadcast.UserID != 1 || !broadcast.IsTyping {
		t.Errorf("broadcast payload: %+v", broadcast)
	}
}

func TestGatewayRejectsMalformedAndUnknownFrames(t *testing.T) {
	hub := NewHub()
	gateway := NewGateway(hub, &stubChatService{})
	sess := &memorySession{userID: 1}

	gateway.Dispatch(sess, []byte("{not json"))
	gateway.Dispatch(sess, frame(t, "no-such-command", struct{}{}))

	events := sess.received()
	if len(events) != 2 {
		t.Fatalf("expected 2 error events, got %d", len(events))
	}
	for _, env := range events {
		if env.Event != EventError {
			t.Errorf("expected error event, got %q", env.Event)
		}
	}
}
