package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attachment kinds
const (
	AttachmentImage = "image"
	AttachmentVideo = "video"
	AttachmentFile  = "file"
)

// Attachment is a typed media reference carried by a message
type Attachment struct {
	Type     string `json:"type" bson:"type" validate:"required,oneof=image video file"`
	URL      string `json:"url" bson:"url" validate:"required,url"`
	Filename string `json:"filename,omitempty" bson:"filename,omitempty"`
	Size     int64  `json:"size,omitempty" bson:"size,omitempty"`
}

// Message represents a single authored unit within a chat, stored in MongoDB.
// Deletion is a tombstone: the record stays for ordering and reply integrity.
type Message struct {
	ID          primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	ChatID      primitive.ObjectID  `json:"chat_id" bson:"chat_id"`
	SenderID    uint                `json:"sender_id" bson:"sender_id"`
	Text        string              `json:"text,omitempty" bson:"text,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty" bson:"attachments,omitempty"`
	ReadBy      []uint              `json:"read_by" bson:"read_by"`
	IsEdited    bool                `json:"is_edited" bson:"is_edited"`
	IsDeleted   bool                `json:"is_deleted" bson:"is_deleted"`
	ReplyTo     *primitive.ObjectID `json:"reply_to,omitempty" bson:"reply_to,omitempty"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" bson:"updated_at"`
}

// SendMessageRequest defines the request body for sending a message
type SendMessageRequest struct {
	ChatID      string       `json:"chat_id" validate:"required"`
	Text        string       `json:"text,omitempty" validate:"omitempty,max=1000"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"omitempty,dive"`
	ReplyTo     string       `json:"reply_to,omitempty"`
}

// MessageView is a message with sender, reply target and readers resolved
type MessageView struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chat_id"`
	Sender      UserCompact   `json:"sender"`
	Text        string        `json:"text,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	ReadBy      []UserCompact `json:"read_by"`
	IsEdited    bool          `json:"is_edited"`
	IsDeleted   bool          `json:"is_deleted"`
	ReplyTo     *MessageView  `json:"reply_to,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
