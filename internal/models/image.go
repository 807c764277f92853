package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Image is the persisted record of a successfully uploaded asset. The row is
// created only after the Drive upload succeeded; deleting it is best-effort
// dual delete with the Drive object, never transactional.
type Image struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	DriveFileID string             `bson:"drive_file_id" json:"drive_file_id"`
	DriveURL    string             `bson:"drive_url" json:"drive_url"`
	MimeType    string             `bson:"mime_type" json:"mime_type"`
	Size        int64              `bson:"size" json:"size"`
	UserID      string             `bson:"user_id" json:"user_id"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
