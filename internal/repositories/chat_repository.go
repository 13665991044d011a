package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orbita-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound reports an absent document. Callers that must distinguish
// "no such document" from a failed query check for it with errors.Is;
// a transient query failure must never be mistaken for absence.
var ErrNotFound = errors.New("not found")

// ChatRepository defines the interface for chat data operations.
// Counter mutations are targeted atomic field updates, never
// read-modify-write, because multiple participants act on the same chat
// concurrently.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChatByID(ctx context.Context, id string) (*models.Chat, error)
	FindDirectChat(ctx context.Context, userID, otherID uint) (*models.Chat, error)
	GetChatsByParticipant(ctx context.Context, userID uint, skip, limit int64) ([]models.Chat, error)
	RecordNewMessage(ctx context.Context, chatID, messageID primitive.ObjectID, senderID uint) error
	ResetUnread(ctx context.Context, chatID primitive.ObjectID, userID uint) error
}

// MongoChatRepository implements ChatRepository for MongoDB
type MongoChatRepository struct {
	collection *mongo.Collection
}

// NewMongoChatRepository creates a new MongoChatRepository
func NewMongoChatRepository(db *mongo.Database) *MongoChatRepository {
	return &MongoChatRepository{collection: db.Collection("chats")}
}

// CreateChat creates a new chat in MongoDB
func (r *MongoChatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	chat.ID = primitive.NewObjectID()
	chat.CreatedAt = time.Now()
	chat.UpdatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, chat)
	return err
}

// GetChatByID retrieves a chat by ID from MongoDB
func (r *MongoChatRepository) GetChatByID(ctx context.Context, id string) (*models.Chat, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID format: %w", err)
	}

	var chat models.Chat
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("chat %w", ErrNotFound)
		}
		return nil, err
	}
	return &chat, nil
}

// FindDirectChat looks up the direct chat containing exactly {userID, otherID}
func (r *MongoChatRepository) FindDirectChat(ctx context.Context, userID, otherID uint) (*models.Chat, error) {
	filter := bson.M{
		"chat_type":    models.ChatTypeDirect,
		"participants": bson.M{"$all": bson.A{userID, otherID}, "$size": 2},
	}

	var chat models.Chat
	err := r.collection.FindOne(ctx, filter).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("chat %w", ErrNotFound)
		}
		return nil, err
	}
	return &chat, nil
}

// GetChatsByParticipant retrieves a user's chats ordered by most recent activity
func (r *MongoChatRepository) GetChatsByParticipant(ctx context.Context, userID uint, skip, limit int64) ([]models.Chat, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"participants": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []models.Chat
	if err = cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// RecordNewMessage updates the chat for a freshly persisted message as one
// atomic document update: sets the lastMessage pointer, bumps updated_at and
// increments the unread counter of every participant except the sender.
func (r *MongoChatRepository) RecordNewMessage(ctx context.Context, chatID, messageID primitive.ObjectID, senderID uint) error {
	update := bson.M{
		"$set": bson.M{
			"last_message": messageID,
			"updated_at":   time.Now(),
		},
		"$inc": bson.M{"unread_counts.$[other].count": 1},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"other.user_id": bson.M{"$ne": senderID}}},
	})

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": chatID}, update, opts)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("chat %w", ErrNotFound)
	}
	return nil
}

// ResetUnread atomically zeroes the unread counter of one participant
func (r *MongoChatRepository) ResetUnread(ctx context.Context, chatID primitive.ObjectID, userID uint) error {
	update := bson.M{"$set": bson.M{"unread_counts.$[me].count": 0}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"me.user_id": userID}},
	})

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": chatID}, update, opts)
	return err
}
