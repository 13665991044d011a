package realtime

import "encoding/json"

// Client -> server commands
const (
	CommandJoinChat    = "join-chat"
	CommandLeaveChat   = "leave-chat"
	CommandSendMessage = "send-message"
	CommandMarkAsRead  = "mark-as-read"
	CommandTyping      = "typing"
)

// Server -> client pushes
const (
	EventChatJoined = "chat-joined"
	EventError      = "error"
)

// Envelope is the wire frame for both directions: an event name plus a payload
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func encodeEvent(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: event, Data: payload})
}

type joinChatPayload struct {
	ChatID string `json:"chat_id"`
}

type leaveChatPayload struct {
	ChatID string `json:"chat_id"`
}

type markAsReadPayload struct {
	ChatID string `json:"chat_id"`
}

type typingPayload struct {
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"is_typing"`
}

type typingBroadcast struct {
	UserID   uint `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

type errorPayload struct {
	Message string `json:"message"`
}
