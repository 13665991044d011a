package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/orbita-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeletedMessageText replaces the content of a tombstoned message
const DeletedMessageText = "This message was deleted"

// MessageRepository defines the interface for message data operations
type MessageRepository interface {
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	GetMessagesByChatID(ctx context.Context, chatID primitive.ObjectID, skip, limit int64, includeDeleted bool) ([]models.Message, error)
	MarkAllRead(ctx context.Context, chatID primitive.ObjectID, userID uint) error
	TombstoneMessage(ctx context.Context, id primitive.ObjectID) error
}

// MongoMessageRepository implements MessageRepository for MongoDB
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a new MongoMessageRepository
func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection("messages")}
}

// CreateMessage persists a new message in MongoDB
func (r *MongoMessageRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()
	message.UpdatedAt = time.Now()
	if message.ReadBy == nil {
		message.ReadBy = []uint{}
	}
	_, err := r.collection.InsertOne(ctx, message)
	return err
}

// GetMessageByID retrieves a message by ID from MongoDB
func (r *MongoMessageRepository) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid message ID format: %w", err)
	}

	var message models.Message
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("message %w", ErrNotFound)
		}
		return nil, err
	}
	return &message, nil
}

// GetMessagesByChatID retrieves a chat's messages newest-first. Creation order
// is authoritative: sorted by created_at, tie-broken by _id (insertion order).
// Tombstoned messages are excluded unless includeDeleted is set.
func (r *MongoMessageRepository) GetMessagesByChatID(ctx context.Context, chatID primitive.ObjectID, skip, limit int64, includeDeleted bool) ([]models.Message, error) {
	filter := bson.M{"chat_id": chatID}
	if !includeDeleted {
		filter["is_deleted"] = false
	}

	findOptions := options.Find().SetSkip(skip).SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkAllRead adds userID to the read-by set of every message in the chat not
// already read by them. $addToSet makes re-invocation a no-op.
func (r *MongoMessageRepository) MarkAllRead(ctx context.Context, chatID primitive.ObjectID, userID uint) error {
	filter := bson.M{"chat_id": chatID, "read_by": bson.M{"$ne": userID}}
	_, err := r.collection.UpdateMany(ctx, filter, bson.M{"$addToSet": bson.M{"read_by": userID}})
	return err
}

// TombstoneMessage clears a message's content and flags it deleted. The record
// is retained for ordering and reply integrity.
func (r *MongoMessageRepository) TombstoneMessage(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{
			"text":       DeletedMessageText,
			"is_deleted": true,
			"updated_at": time.Now(),
		},
		"$unset": bson.M{"attachments": ""},
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("message %w", ErrNotFound)
	}
	return nil
}
