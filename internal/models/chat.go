package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat types
const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

// UnreadCount tracks one participant's count of unacknowledged messages
type UnreadCount struct {
	UserID uint `json:"user_id" bson:"user_id"`
	Count  int  `json:"count" bson:"count"`
}

// Chat represents a conversation stored in MongoDB.
// A direct chat has exactly two participants and at most one chat
// exists per unordered participant pair.
type Chat struct {
	ID           primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	Participants []uint              `json:"participants" bson:"participants"`
	LastMessage  *primitive.ObjectID `json:"last_message,omitempty" bson:"last_message,omitempty"`
	UnreadCounts []UnreadCount       `json:"unread_counts" bson:"unread_counts"`
	ChatType     string              `json:"chat_type" bson:"chat_type"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" bson:"updated_at"`
}

// HasParticipant reports whether userID is a current participant
func (c *Chat) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the tracked unread count for userID (0 if not tracked)
func (c *Chat) UnreadFor(userID uint) int {
	for _, uc := range c.UnreadCounts {
		if uc.UserID == userID {
			return uc.Count
		}
	}
	return 0
}

// CreateChatRequest defines the request body for creating or finding a chat
type CreateChatRequest struct {
	ParticipantIDs []uint `json:"participant_ids" validate:"required,min=1,dive,gt=0"`
	ChatType       string `json:"chat_type,omitempty" validate:"omitempty,oneof=direct group"`
}

// ChatView is a chat with participants resolved and the caller's personal unread count
type ChatView struct {
	ID           string        `json:"id"`
	Participants []UserCompact `json:"participants"`
	LastMessage  *MessageView  `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
	ChatType     string        `json:"chat_type"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
