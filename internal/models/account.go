package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LinkedAccount ties an application user to their external-storage identity.
// AccessToken is short-lived; RefreshToken is long-lived but may rotate.
// Invariant: a non-empty AccessToken always comes with AccessTokenExpiresAt set.
type LinkedAccount struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID               string             `bson:"user_id" json:"user_id"`
	Provider             string             `bson:"provider" json:"provider"`
	AccessToken          string             `bson:"access_token,omitempty" json:"-"`
	RefreshToken         string             `bson:"refresh_token,omitempty" json:"-"`
	AccessTokenExpiresAt *time.Time         `bson:"access_token_expires_at,omitempty" json:"-"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}

const ProviderGoogle = "google"
