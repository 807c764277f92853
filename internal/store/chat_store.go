package store

import (
	"context"
	"errors"
	"time"

	"github.com/piggy-devil/prompt-v1.0/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatStore persists chat sessions and their messages.
type ChatStore struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{
		sessions: db.Collection("chat_sessions"),
		messages: db.Collection("chat_messages"),
	}
}

func (s *ChatStore) CreateSession(ctx context.Context, userID, title string) (*models.ChatSession, error) {
	now := time.Now()
	session := &models.ChatSession{
		ID:        primitive.NewObjectID(),
		Title:     title,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// FindSession returns (nil, nil) for an unknown or malformed id.
func (s *ChatStore) FindSession(ctx context.Context, id string) (*models.ChatSession, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var session models.ChatSession
	err = s.sessions.FindOne(ctx, bson.M{"_id": objID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *ChatStore) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	cursor, err := s.sessions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []models.ChatSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}

	for i := range sessions {
		msgs, err := s.ListMessages(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Messages = msgs
	}
	return sessions, nil
}

// DeleteSession removes the session and all of its messages.
func (s *ChatStore) DeleteSession(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.messages.DeleteMany(ctx, bson.M{"chat_session_id": id}); err != nil {
		return err
	}
	_, err := s.sessions.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *ChatStore) TouchSession(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.sessions.UpdateByID(ctx, id, bson.M{"$set": bson.M{"updated_at": time.Now()}})
	return err
}

func (s *ChatStore) SetSessionTitle(ctx context.Context, id primitive.ObjectID, title string) error {
	_, err := s.sessions.UpdateByID(ctx, id, bson.M{"$set": bson.M{"title": title}})
	return err
}

func (s *ChatStore) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.messages.InsertOne(ctx, msg)
	return err
}

func (s *ChatStore) ListMessages(ctx context.Context, sessionID primitive.ObjectID) ([]models.ChatMessage, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := s.messages.Find(ctx, bson.M{"chat_session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []models.ChatMessage{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *ChatStore) CountMessages(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{"chat_session_id": sessionID})
}
