package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/orbita-social/backend/internal/models"
	"github.com/orbita-social/backend/internal/services"
)

// Gateway translates client commands into chat service calls. Every command
// is validated against the same service contracts as the HTTP path, so the
// realtime and REST surfaces stay consistent. Failures become an `error`
// event on the acting session only; they never terminate the connection.
type Gateway struct {
	hub   *Hub
	chats services.ChatService
}

// NewGateway creates a Gateway over the hub and chat service
func NewGateway(hub *Hub, chats services.ChatService) *Gateway {
	return &Gateway{hub: hub, chats: chats}
}

// Dispatch routes one inbound frame from a session
func (g *Gateway) Dispatch(sess Session, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.sendError(sess, "Invalid event payload")
		return
	}

	switch env.Event {
	case CommandJoinChat:
		g.handleJoinChat(sess, env.Data)
	case CommandLeaveChat:
		g.handleLeaveChat(sess, env.Data)
	case CommandSendMessage:
		g.handleSendMessage(sess, env.Data)
	case CommandMarkAsRead:
		g.handleMarkAsRead(sess, env.Data)
	case CommandTyping:
		g.handleTyping(sess, env.Data)
	default:
		g.sendError(sess, "Unknown event: "+env.Event)
	}
}

// handleJoinChat re-validates participation before admitting the session to
// the room so a spoofed chat id never receives broadcasts
func (g *Gateway) handleJoinChat(sess Session, data json.RawMessage) {
	var payload joinChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		g.sendError(sess, "Invalid join payload")
		return
	}

	if _, err := g.chats.GetChatByID(context.Background(), payload.ChatID, sess.UserID()); err != nil {
		g.sendError(sess, "Cannot join chat")
		return
	}

	g.hub.Join(payload.ChatID, sess)
	g.sendEvent(sess, EventChatJoined, joinChatPayload{ChatID: payload.ChatID})
}

// handleLeaveChat honors a leave unconditionally; leaving cannot leak data
func (g *Gateway) handleLeaveChat(sess Session, data json.RawMessage) {
	var payload leaveChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		g.sendError(sess, "Invalid leave payload")
		return
	}
	g.hub.Leave(payload.ChatID, sess)
}

func (g *Gateway) handleSendMessage(sess Session, data json.RawMessage) {
	var payload models.SendMessageRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		g.sendError(sess, "Invalid message data")
		return
	}
	if payload.ChatID == "" || (payload.Text == "" && len(payload.Attachments) == 0) {
		g.sendError(sess, "Invalid message data")
		return
	}

	// The service broadcasts the populated message to the room itself
	if _, err := g.chats.SendMessage(context.Background(), sess.UserID(), &payload); err != nil {
		g.sendError(sess, "Failed to send message")
	}
}

func (g *Gateway) handleMarkAsRead(sess Session, data json.RawMessage) {
	var payload markAsReadPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		g.sendError(sess, "Invalid read payload")
		return
	}

	if err := g.chats.MarkAsRead(context.Background(), payload.ChatID, sess.UserID()); err != nil {
		g.sendError(sess, "Failed to mark messages as read")
	}
}

// handleTyping is purely ephemeral: no persistence, fire-and-forget fan-out
// to the room, excluding the typist themselves
func (g *Gateway) handleTyping(sess Session, data json.RawMessage) {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		g.sendError(sess, "Invalid typing payload")
		return
	}

	g.hub.EmitToChatExcept(payload.ChatID, sess.UserID(), services.EventUserTyping, typingBroadcast{
		UserID:   sess.UserID(),
		IsTyping: payload.IsTyping,
	})
}

func (g *Gateway) sendEvent(sess Session, event string, payload interface{}) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("failed to encode %s event: %v", event, err)
		return
	}
	sess.Enqueue(data)
}

func (g *Gateway) sendError(sess Session, message string) {
	g.sendEvent(sess, EventError, errorPayload{Message: message})
}
