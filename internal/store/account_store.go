package store

import (
	"context"
	"errors"
	"time"

	"github.com/piggy-devil/prompt-v1.0/internal/googleauth"
	"github.com/piggy-devil/prompt-v1.0/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountStore persists linked Google accounts in the accounts collection.
type AccountStore struct {
	coll *mongo.Collection
}

var _ googleauth.AccountStore = (*AccountStore)(nil)

func NewAccountStore(db *mongo.Database) *AccountStore {
	return &AccountStore{coll: db.Collection("accounts")}
}

func (s *AccountStore) FindByUser(ctx context.Context, userID string) (*models.LinkedAccount, error) {
	var account models.LinkedAccount
	err := s.coll.FindOne(ctx, bson.M{
		"user_id":  userID,
		"provider": models.ProviderGoogle,
	}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveTokens writes the refreshed pair. The refresh token is only touched
// when the provider rotated it; otherwise the stored value stays.
func (s *AccountStore) SaveTokens(ctx context.Context, id primitive.ObjectID, upd googleauth.TokenUpdate) error {
	set := bson.M{
		"access_token":            upd.AccessToken,
		"access_token_expires_at": upd.AccessTokenExpiresAt,
		"updated_at":              time.Now(),
	}
	if upd.RefreshToken != "" {
		set["refresh_token"] = upd.RefreshToken
	}

	_, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

func (s *AccountStore) Upsert(ctx context.Context, account *models.LinkedAccount) error {
	now := time.Now()
	filter := bson.M{
		"user_id":  account.UserID,
		"provider": account.Provider,
	}
	update := bson.M{
		"$set": bson.M{
			"access_token":            account.AccessToken,
			"refresh_token":           account.RefreshToken,
			"access_token_expires_at": account.AccessTokenExpiresAt,
			"updated_at":              now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
