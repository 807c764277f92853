package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piggy-devil/prompt-v1.0/internal/drive"
	"github.com/piggy-devil/prompt-v1.0/internal/googleauth"
	"github.com/piggy-devil/prompt-v1.0/internal/models"
	"github.com/piggy-devil/prompt-v1.0/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// bulkUploadConcurrency bounds how many Drive uploads one bulk request runs
// at once.
const bulkUploadConcurrency = 4

// DriveClient is the slice of the storage gateway the image pipeline needs.
// *drive.Service implements it; tests substitute fakes.
type DriveClient interface {
	EnsureRootFolder(ctx context.Context) (string, error)
	EnsureCategoryFolder(ctx context.Context, rootID, category string) (string, error)
	UploadFile(ctx context.Context, name string, content []byte, mimeType, folderID string) (drive.UploadResult, error)
	DeleteFile(ctx context.Context, fileID string) error
	TrashFile(ctx context.Context, fileID string) error
}

// DriveFactory builds a gateway bound to a fresh access token for the user.
// Built per request; nothing is cached across requests.
type DriveFactory func(ctx context.Context, userID string) (DriveClient, error)

// GoogleDriveFactory wires the credential refresher to the Drive gateway.
func GoogleDriveFactory(refresher *googleauth.Refresher, rootName string) DriveFactory {
	return func(ctx context.Context, userID string) (DriveClient, error) {
		creds, err := refresher.EnsureFreshAccessToken(ctx, userID)
		if err != nil {
			return nil, err
		}
		return drive.New(creds.AccessToken, drive.WithRootName(rootName)), nil
	}
}

// ImageStore persists uploaded-asset metadata. FindByID returns (nil, nil)
// for unknown ids.
type ImageStore interface {
	Insert(ctx context.Context, img *models.Image) error
	FindByID(ctx context.Context, id string) (*models.Image, error)
	ListByUser(ctx context.Context, userID string) ([]models.Image, error)
	ListPublic(ctx context.Context, cursor string, limit int) ([]models.Image, string, error)
	UpdateMeta(ctx context.Context, id primitive.ObjectID, title, description string) (*models.Image, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ImageService runs the upload pipeline: fresh token, idempotent folder
// provisioning, Drive upload with public permission, then one metadata row.
type ImageService struct {
	images   ImageStore
	driveFor DriveFactory
	logger   *zap.Logger
	now      func() time.Time
}

func NewImageService(images ImageStore, driveFor DriveFactory, logger *zap.Logger) *ImageService {
	return &ImageService{
		images:   images,
		driveFor: driveFor,
		logger:   logger,
		now:      time.Now,
	}
}

// UploadInput is one file from the multipart request.
type UploadInput struct {
	Filename    string
	Content     []byte
	MimeType    string
	Title       string
	Description string
}

type BulkFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type BulkUploadResult struct {
	Created []models.Image `json:"created"`
	Failed  []BulkFailure  `json:"failed"`
}

// Upload pushes one file into the user's category folder and records the
// asset. The row is written only after the Drive side fully succeeded; a
// failure after file creation (e.g. on the permission call) leaves an
// orphaned Drive object behind for the caller to clean up.
func (s *ImageService) Upload(ctx context.Context, userID string, file UploadInput, category string) (*models.Image, error) {
	if len(file.Content) == 0 {
		return nil, fmt.Errorf("%w: no file provided", ErrValidation)
	}

	dc, err := s.driveFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	folderID, category, err := s.provisionFolders(ctx, dc, category)
	if err != nil {
		return nil, err
	}

	return s.uploadOne(ctx, dc, userID, file, category, folderID)
}

// BulkUpload provisions the folder hierarchy once, then uploads every file
// concurrently. Failures are collected per file and never abort siblings.
func (s *ImageService) BulkUpload(ctx context.Context, userID string, files []UploadInput, category string) (*BulkUploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files provided", ErrValidation)
	}

	dc, err := s.driveFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	folderID, category, err := s.provisionFolders(ctx, dc, category)
	if err != nil {
		return nil, err
	}

	created := make([]*models.Image, len(files))
	failures := make([]error, len(files))

	g := new(errgroup.Group)
	g.SetLimit(bulkUploadConcurrency)
	for i := range files {
		i := i
		g.Go(func() error {
			created[i], failures[i] = s.uploadOne(ctx, dc, userID, files[i], category, folderID)
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkUploadResult{Created: []models.Image{}, Failed: []BulkFailure{}}
	for i := range files {
		if failures[i] != nil {
			s.logger.Warn("bulk upload item failed",
				zap.String("file", files[i].Filename), zap.Error(failures[i]))
			result.Failed = append(result.Failed, BulkFailure{
				File:  files[i].Filename,
				Error: failures[i].Error(),
			})
			continue
		}
		result.Created = append(result.Created, *created[i])
	}
	return result, nil
}

func (s *ImageService) provisionFolders(ctx context.Context, dc DriveClient, category string) (string, string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = drive.DefaultCategory
	}

	rootID, err := dc.EnsureRootFolder(ctx)
	if err != nil {
		return "", "", err
	}
	folderID, err := dc.EnsureCategoryFolder(ctx, rootID, category)
	if err != nil {
		return "", "", err
	}
	return folderID, category, nil
}

func (s *ImageService) uploadOne(ctx context.Context, dc DriveClient, userID string, file UploadInput, category, folderID string) (*models.Image, error) {
	// Drive allows duplicate names, so prefix with a timestamp to keep
	// stored names collision-resistant.
	storedName := fmt.Sprintf("%d_%s", s.now().UnixMilli(), file.Filename)

	res, err := dc.UploadFile(ctx, storedName, file.Content, file.MimeType, folderID)
	if err != nil {
		return nil, err
	}

	title := file.Title
	if title == "" {
		title = file.Filename
	}
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	img := &models.Image{
		Title:       title,
		Description: file.Description,
		Category:    category,
		DriveFileID: res.FileID,
		DriveURL:    res.PublicURL,
		MimeType:    mimeType,
		Size:        int64(len(file.Content)),
		UserID:      userID,
		CreatedAt:   s.now(),
	}
	if err := s.images.Insert(ctx, img); err != nil {
		return nil, fmt.Errorf("save image metadata: %w", err)
	}
	return img, nil
}

func (s *ImageService) ListByUser(ctx context.Context, userID string) ([]models.Image, error) {
	return s.images.ListByUser(ctx, userID)
}

// ListPublic pages through all assets without an ownership filter.
func (s *ImageService) ListPublic(ctx context.Context, cursor string, limit int) ([]models.Image, string, error) {
	if limit <= 0 {
		limit = 24
	}
	if limit > 100 {
		limit = 100
	}
	return s.images.ListPublic(ctx, cursor, limit)
}

// UpdateMeta changes title and/or description. Nil fields keep the stored
// value.
func (s *ImageService) UpdateMeta(ctx context.Context, userID, id string, title, description *string) (*models.Image, error) {
	img, err := s.ownedImage(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	newTitle := img.Title
	if title != nil {
		newTitle = *title
	}
	newDescription := img.Description
	if description != nil {
		newDescription = *description
	}

	return s.images.UpdateMeta(ctx, img.ID, newTitle, newDescription)
}

// Delete removes the Drive object first, then the row. A Drive failure other
// than not-found keeps the row so the asset stays visible and retryable; the
// two sides are never transactional.
func (s *ImageService) Delete(ctx context.Context, userID, id string) error {
	img, err := s.ownedImage(ctx, userID, id)
	if err != nil {
		return err
	}

	if img.DriveFileID != "" {
		dc, err := s.driveFor(ctx, userID)
		if err != nil {
			return err
		}
		if err := dc.DeleteFile(ctx, img.DriveFileID); err != nil {
			s.logger.Error("drive delete failed",
				zap.String("image_id", id), zap.Error(err))
			return err
		}
	}

	return s.images.Delete(ctx, img.ID)
}

type BatchDeleteItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type BatchDeleteSummary struct {
	Deleted   int `json:"deleted"`
	Forbidden int `json:"forbidden"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
}

type BatchDeleteResult struct {
	Summary BatchDeleteSummary `json:"summary"`
	Results []BatchDeleteItem  `json:"results"`
}

// BatchDelete processes every id independently and reports a per-item status;
// one item's failure never aborts the rest.
func (s *ImageService) BatchDelete(ctx context.Context, userID string, ids []string) (*BatchDeleteResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids required", ErrValidation)
	}

	dc, err := s.driveFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	results, _ := utils.MapParallel(ids, func(id string) (BatchDeleteItem, error) {
		return s.deleteOne(ctx, dc, userID, id), nil
	})

	out := &BatchDeleteResult{Results: results}
	for _, r := range results {
		switch r.Status {
		case "deleted":
			out.Summary.Deleted++
		case "forbidden":
			out.Summary.Forbidden++
		case "not_found":
			out.Summary.NotFound++
		case "failed":
			out.Summary.Failed++
		}
	}
	return out, nil
}

func (s *ImageService) deleteOne(ctx context.Context, dc DriveClient, userID, id string) BatchDeleteItem {
	img, err := s.images.FindByID(ctx, id)
	if err != nil {
		return BatchDeleteItem{ID: id, Status: "failed", Error: err.Error()}
	}
	if img == nil {
		return BatchDeleteItem{ID: id, Status: "not_found"}
	}
	if img.UserID != userID {
		return BatchDeleteItem{ID: id, Status: "forbidden"}
	}

	if img.DriveFileID != "" {
		if err := dc.DeleteFile(ctx, img.DriveFileID); err != nil {
			s.logger.Error("drive delete failed",
				zap.String("image_id", id), zap.Error(err))
			return BatchDeleteItem{ID: id, Status: "failed", Error: err.Error()}
		}
	}
	if err := s.images.Delete(ctx, img.ID); err != nil {
		return BatchDeleteItem{ID: id, Status: "failed", Error: err.Error()}
	}
	return BatchDeleteItem{ID: id, Status: "deleted"}
}

func (s *ImageService) ownedImage(ctx context.Context, userID, id string) (*models.Image, error) {
	img, err := s.images.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNotFound
	}
	if img.UserID != userID {
		return nil, ErrForbidden
	}
	return img, nil
}
