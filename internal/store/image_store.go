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

// ImageStore persists uploaded-asset metadata in the images collection.
type ImageStore struct {
	coll *mongo.Collection
}

func NewImageStore(db *mongo.Database) *ImageStore {
	return &ImageStore{coll: db.Collection("images")}
}

func (s *ImageStore) Insert(ctx context.Context, img *models.Image) error {
	if img.ID.IsZero() {
		img.ID = primitive.NewObjectID()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	_, err := s.coll.InsertOne(ctx, img)
	return err
}

// FindByID returns (nil, nil) for an unknown or malformed id.
func (s *ImageStore) FindByID(ctx context.Context, id string) (*models.Image, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var img models.Image
	err = s.coll.FindOne(ctx, bson.M{"_id": objID}).Decode(&img)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *ImageStore) ListByUser(ctx context.Context, userID string) ([]models.Image, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	images := []models.Image{}
	if err := cursor.All(ctx, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// ListPublic pages newest-first through all assets. ObjectIDs are
// time-ordered, so the id of the last returned row works as the cursor.
func (s *ImageStore) ListPublic(ctx context.Context, cursor string, limit int) ([]models.Image, string, error) {
	filter := bson.M{}
	if cursor != "" {
		cursorID, err := primitive.ObjectIDFromHex(cursor)
		if err == nil {
			filter["_id"] = bson.M{"$lt": cursorID}
		}
	}

	opts := options.Find().SetSort(bson.M{"_id": -1}).SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", err
	}
	defer cur.Close(ctx)

	items := []models.Image{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(items) == limit {
		nextCursor = items[len(items)-1].ID.Hex()
	}
	return items, nextCursor, nil
}

func (s *ImageStore) UpdateMeta(ctx context.Context, id primitive.ObjectID, title, description string) (*models.Image, error) {
	update := bson.M{"$set": bson.M{
		"title":       title,
		"description": description,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Image
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *ImageStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
