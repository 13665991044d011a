package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/orbita-social/backend/internal/models"
	"github.com/orbita-social/backend/internal/repositories"
)

// Realtime event names pushed to chat rooms
const (
	EventNewMessage   = "new-message"
	EventMessagesRead = "messages-read"
	EventUserTyping   = "user-typing"
)

// Broadcaster fans an event out to every connection in a chat room. The
// in-memory hub implements it for a single process; a distributed pub/sub
// backend can be substituted without touching the chat logic.
type Broadcaster interface {
	EmitToChat(chatID, event string, payload interface{})
	EmitToChatExcept(chatID string, exceptUserID uint, event string, payload interface{})
}

// ReadReceipt is the payload of a messages-read broadcast
type ReadReceipt struct {
	UserID    uint      `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatService owns chat lifecycle, message creation, unread accounting and
// read receipts. Both the HTTP handlers and the realtime gateway call into
// it, so the two paths stay consistent.
type ChatService interface {
	FindOrCreateChat(ctx context.Context, creatorID uint, participantIDs []uint, chatType string) (*models.ChatView, error)
	GetUserChats(ctx context.Context, userID uint, page, limit int) ([]models.ChatView, error)
	GetChatByID(ctx context.Context, chatID string, userID uint) (*models.ChatView, error)
	GetOrCreateDirectChat(ctx context.Context, userID, otherID uint) (*models.ChatView, error)
	SendMessage(ctx context.Context, senderID uint, req *models.SendMessageRequest) (*models.MessageView, error)
	ReplyToMessage(ctx context.Context, senderID uint, req *models.SendMessageRequest) (*models.MessageView, error)
	GetChatMessages(ctx context.Context, chatID string, userID uint, page, limit int) ([]models.MessageView, error)
	MarkAsRead(ctx context.Context, chatID string, userID uint) error
	DeleteMessage(ctx context.Context, messageID string, userID uint) error
}

type chatService struct {
	chats         repositories.ChatRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	notifications repositories.NotificationRepository
	broadcaster   Broadcaster
}

// NewChatService creates a ChatService over the given repositories
func NewChatService(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	notifications repositories.NotificationRepository,
	broadcaster Broadcaster,
) ChatService {
	return &chatService{
		chats:         chats,
		messages:      messages,
		users:         users,
		notifications: notifications,
		broadcaster:   broadcaster,
	}
}

// FindOrCreateChat returns the existing direct chat for {creator, other} or
// creates a new chat. New chats seed the creator's unread counter to 0 and
// every other participant's to 1.
func (s *chatService) FindOrCreateChat(ctx context.Context, creatorID uint, participantIDs []uint, chatType string) (*models.ChatView, error) {
	others := dedupe(participantIDs, creatorID)
	if len(others) == 0 {
		return nil, ErrValidation("at least one other participant is required")
	}
	if chatType == "" {
		chatType = models.ChatTypeDirect
	}
	if chatType == models.ChatTypeDirect && len(others) != 1 {
		return nil, ErrValidation("a direct chat has exactly two participants")
	}

	if chatType == models.ChatTypeDirect {
		existing, err := s.chats.FindDirectChat(ctx, creatorID, others[0])
		switch {
		case err == nil:
			return s.populateChat(ctx, existing, creatorID)
		case !errors.Is(err, repositories.ErrNotFound):
			// A failed lookup must not fall through to creation: that would
			// duplicate the direct chat for this pair.
			return nil, ErrInternal("failed to look up direct chat")
		}
	}

	participants := append([]uint{creatorID}, others...)
	unread := make([]models.UnreadCount, 0, len(participants))
	for _, p := range participants {
		count := 1
		if p == creatorID {
			count = 0
		}
		unread = append(unread, models.UnreadCount{UserID: p, Count: count})
	}

	chat := &models.Chat{
		Participants: participants,
		UnreadCounts: unread,
		ChatType:     chatType,
	}
	if err := s.chats.CreateChat(ctx, chat); err != nil {
		return nil, ErrInternal("failed to create chat")
	}

	// A failed re-fetch right after creation signals a consistency bug
	created, err := s.chats.GetChatByID(ctx, chat.ID.Hex())
	if err != nil {
		return nil, ErrNotFound("chat not found after creation")
	}
	return s.populateChat(ctx, created, creatorID)
}

// GetUserChats returns the user's chats ordered by most recent activity,
// each annotated with that user's personal unread count. Pages are 1-indexed.
func (s *chatService) GetUserChats(ctx context.Context, userID uint, page, limit int) ([]models.ChatView, error) {
	page, limit = normalizePage(page, limit, 20)
	skip := int64((page - 1) * limit)

	chats, err := s.chats.GetChatsByParticipant(ctx, userID, skip, int64(limit))
	if err != nil {
		return nil, ErrInternal("failed to load chats")
	}

	views := make([]models.ChatView, 0, len(chats))
	for i := range chats {
		view, err := s.populateChat(ctx, &chats[i], userID)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// GetChatByID returns one chat, requiring the caller to be a participant.
// Absent chats and missing access both surface as NotFound.
func (s *chatService) GetChatByID(ctx context.Context, chatID string, userID uint) (*models.ChatView, error) {
	chat, err := s.requireParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return s.populateChat(ctx, chat, userID)
}

// GetOrCreateDirectChat is the direct-pair composition helper
func (s *chatService) GetOrCreateDirectChat(ctx context.Context, userID, otherID uint) (*models.ChatView, error) {
	return s.FindOrCreateChat(ctx, userID, []uint{otherID}, models.ChatTypeDirect)
}

// SendMessage persists the message, updates the chat's lastMessage pointer
// and atomically increments every other participant's unread counter. The
// room broadcast and the message notifications are best-effort side effects
// that never roll back the persisted message.
func (s *chatService) SendMessage(ctx context.Context, senderID uint, req *models.SendMessageRequest) (*models.MessageView, error) {
	if err := validateMessageContent(req); err != nil {
		return nil, err
	}

	chat, err := s.requireParticipant(ctx, req.ChatID, senderID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ChatID:      chat.ID,
		SenderID:    senderID,
		Text:        req.Text,
		Attachments: req.Attachments,
		ReadBy:      []uint{},
	}

	if req.ReplyTo != "" {
		replied, err := s.messages.GetMessageByID(ctx, req.ReplyTo)
		if err != nil {
			return nil, ErrNotFound("replied-to message not found")
		}
		message.ReplyTo = &replied.ID
	}

	if err := s.messages.CreateMessage(ctx, message); err != nil {
		return nil, ErrInternal("failed to send message")
	}
	if err := s.chats.RecordNewMessage(ctx, chat.ID, message.ID, senderID); err != nil {
		return nil, ErrInternal("failed to update chat")
	}

	view, err := s.populateMessage(ctx, message)
	if err != nil {
		return nil, err
	}

	s.broadcaster.EmitToChat(chat.ID.Hex(), EventNewMessage, view)
	s.notifyParticipants(chat, message, senderID)

	return view, nil
}

// ReplyToMessage validates the reply target belongs to the same chat before
// delegating to SendMessage.
func (s *chatService) ReplyToMessage(ctx context.Context, senderID uint, req *models.SendMessageRequest) (*models.MessageView, error) {
	if req.ReplyTo == "" {
		return nil, ErrValidation("reply_to message ID is required")
	}

	replied, err := s.messages.GetMessageByID(ctx, req.ReplyTo)
	if err != nil {
		return nil, ErrNotFound("replied-to message not found")
	}
	if replied.ChatID.Hex() != req.ChatID {
		return nil, ErrValidation("replied-to message belongs to a different chat")
	}

	return s.SendMessage(ctx, senderID, req)
}

// GetChatMessages returns the chat's non-deleted messages newest-first,
// paginated, with sender, reply target and readers resolved.
func (s *chatService) GetChatMessages(ctx context.Context, chatID string, userID uint, page, limit int) ([]models.MessageView, error) {
	chat, err := s.requireParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	page, limit = normalizePage(page, limit, 50)
	skip := int64((page - 1) * limit)

	messages, err := s.messages.GetMessagesByChatID(ctx, chat.ID, skip, int64(limit), false)
	if err != nil {
		return nil, ErrInternal("failed to load messages")
	}

	views := make([]models.MessageView, 0, len(messages))
	for i := range messages {
		view, err := s.populateMessage(ctx, &messages[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// MarkAsRead zeroes the caller's unread counter and adds them to the read-by
// set of every message in the chat. Re-invoking has no additional effect.
func (s *chatService) MarkAsRead(ctx context.Context, chatID string, userID uint) error {
	chat, err := s.requireParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}

	if err := s.chats.ResetUnread(ctx, chat.ID, userID); err != nil {
		return ErrInternal("failed to reset unread count")
	}
	if err := s.messages.MarkAllRead(ctx, chat.ID, userID); err != nil {
		return ErrInternal("failed to mark messages as read")
	}

	s.broadcaster.EmitToChat(chat.ID.Hex(), EventMessagesRead, ReadReceipt{
		UserID:    userID,
		Timestamp: time.Now(),
	})
	return nil
}

// DeleteMessage tombstones a message. Only the original sender may delete;
// anyone else gets NotFound so the message's existence is not confirmed.
func (s *chatService) DeleteMessage(ctx context.Context, messageID string, userID uint) error {
	message, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return ErrNotFound("message not found")
	}
	if message.SenderID != userID {
		return ErrNotFound("message not found")
	}

	if err := s.messages.TombstoneMessage(ctx, message.ID); err != nil {
		return ErrInternal("failed to delete message")
	}
	return nil
}

// requireParticipant loads a chat and checks membership, conflating "no such
// chat" and "no access" into one NotFound.
func (s *chatService) requireParticipant(ctx context.Context, chatID string, userID uint) (*models.Chat, error) {
	chat, err := s.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, ErrNotFound("chat not found")
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotFound("chat not found")
	}
	return chat, nil
}

// notifyParticipants creates a message notification for every participant
// except the sender. Failures are logged and never surfaced.
func (s *chatService) notifyParticipants(chat *models.Chat, message *models.Message, senderID uint) {
	sender, err := s.users.GetUserByID(senderID)
	if err != nil {
		log.Printf("message notification skipped, sender %d lookup failed: %v", senderID, err)
		return
	}

	for _, participant := range chat.Participants {
		if participant == senderID {
			continue
		}
		notif := &models.Notification{
			Type:        models.NotificationMessage,
			ActorID:     senderID,
			RecipientID: participant,
			MessageID:   message.ID.Hex(),
			ChatID:      chat.ID.Hex(),
			Message:     sender.DisplayName + " sent you a message",
		}
		if err := s.notifications.CreateNotification(notif); err != nil {
			log.Printf("failed to create message notification for user %d: %v", participant, err)
		}
	}
}

func (s *chatService) populateChat(ctx context.Context, chat *models.Chat, viewerID uint) (*models.ChatView, error) {
	compacts, err := s.compactUsers(chat.Participants)
	if err != nil {
		return nil, err
	}

	view := &models.ChatView{
		ID:           chat.ID.Hex(),
		Participants: compacts,
		UnreadCount:  chat.UnreadFor(viewerID),
		ChatType:     chat.ChatType,
		CreatedAt:    chat.CreatedAt,
		UpdatedAt:    chat.UpdatedAt,
	}

	if chat.LastMessage != nil {
		last, err := s.messages.GetMessageByID(ctx, chat.LastMessage.Hex())
		if err == nil {
			lastView, err := s.populateMessage(ctx, last)
			if err != nil {
				return nil, err
			}
			view.LastMessage = lastView
		}
	}
	return view, nil
}

func (s *chatService) populateMessage(ctx context.Context, message *models.Message) (*models.MessageView, error) {
	sender, err := s.users.GetUserByID(message.SenderID)
	if err != nil {
		return nil, ErrInternal(fmt.Sprintf("sender %d not found", message.SenderID))
	}

	readBy, err := s.compactUsers(message.ReadBy)
	if err != nil {
		return nil, err
	}

	view := &models.MessageView{
		ID:          message.ID.Hex(),
		ChatID:      message.ChatID.Hex(),
		Sender:      sender.ToCompact(),
		Text:        message.Text,
		Attachments: message.Attachments,
		ReadBy:      readBy,
		IsEdited:    message.IsEdited,
		IsDeleted:   message.IsDeleted,
		CreatedAt:   message.CreatedAt,
		UpdatedAt:   message.UpdatedAt,
	}

	// Resolve the reply target one level deep
	if message.ReplyTo != nil {
		replied, err := s.messages.GetMessageByID(ctx, message.ReplyTo.Hex())
		if err == nil {
			repliedSender, err := s.users.GetUserByID(replied.SenderID)
			if err != nil {
				return nil, ErrInternal(fmt.Sprintf("sender %d not found", replied.SenderID))
			}
			view.ReplyTo = &models.MessageView{
				ID:        replied.ID.Hex(),
				ChatID:    replied.ChatID.Hex(),
				Sender:    repliedSender.ToCompact(),
				Text:      replied.Text,
				IsDeleted: replied.IsDeleted,
				CreatedAt: replied.CreatedAt,
				UpdatedAt: replied.UpdatedAt,
			}
		}
	}
	return view, nil
}

func (s *chatService) compactUsers(ids []uint) ([]models.UserCompact, error) {
	users, err := s.users.GetUsersByIDs(ids)
	if err != nil {
		return nil, ErrInternal("failed to resolve users")
	}

	byID := make(map[uint]models.UserCompact, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].ToCompact()
	}

	compacts := make([]models.UserCompact, 0, len(ids))
	for _, id := range ids {
		if compact, ok := byID[id]; ok {
			compacts = append(compacts, compact)
		} else {
			// Deleted account: keep a placeholder so ordering survives
			compacts = append(compacts, models.UserCompact{ID: id, Username: "user-" + strconv.FormatUint(uint64(id), 10)})
		}
	}
	return compacts, nil
}

// maxMessageTextLen bounds message text on every transport
const maxMessageTextLen = 1000

// validateMessageContent enforces the message contract for both the HTTP
// and the realtime path: content is required, text is bounded and every
// attachment carries a known type and a URL.
func validateMessageContent(req *models.SendMessageRequest) error {
	if req.Text == "" && len(req.Attachments) == 0 {
		return ErrValidation("a message needs text or at least one attachment")
	}
	if len(req.Text) > maxMessageTextLen {
		return ErrValidation("message text exceeds 1000 characters")
	}
	for _, attachment := range req.Attachments {
		switch attachment.Type {
		case models.AttachmentImage, models.AttachmentVideo, models.AttachmentFile:
		default:
			return ErrValidation("unsupported attachment type: " + attachment.Type)
		}
		if attachment.URL == "" {
			return ErrValidation("attachment URL is required")
		}
	}
	return nil
}

func dedupe(ids []uint, exclude uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}
