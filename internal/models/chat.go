package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	UserID    string             `bson:"user_id" json:"user_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	// Populated by list/get queries, not stored on the session document.
	Messages []ChatMessage `bson:"-" json:"messages,omitempty"`
}

type ChatMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatSessionID primitive.ObjectID `bson:"chat_session_id" json:"chat_session_id"`
	Role          string             `bson:"role" json:"role"`
	Content       string             `bson:"content" json:"content"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

const (
	RoleHuman = "HUMAN"
	RoleAI    = "AI"
)
