package handlers

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/piggy-devil/prompt-v1.0/internal/services"
	"go.uber.org/zap"
)

type ImageHandler struct {
	images *services.ImageService
	logger *zap.Logger
}

func NewImageHandler(images *services.ImageService, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{images: images, logger: logger}
}

// Upload handles a single-file multipart upload with optional title,
// description and category fields.
func (h *ImageHandler) Upload(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file provided"})
	}

	input, err := readUpload(fileHeader, c.FormValue("title"), c.FormValue("description"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read file"})
	}

	img, err := h.images.Upload(c.Context(), userID, input, c.FormValue("category"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(img)
}

// BulkUpload handles a multi-file upload. Titles and descriptions pair with
// files by index; missing entries fall back to the filename.
func (h *ImageHandler) BulkUpload(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid multipart form"})
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No files provided"})
	}

	titles := form.Value["titles[]"]
	descriptions := form.Value["descriptions[]"]

	inputs := make([]services.UploadInput, 0, len(fileHeaders))
	for i, fh := range fileHeaders {
		title, description := "", ""
		if i < len(titles) {
			title = titles[i]
		}
		if i < len(descriptions) {
			description = descriptions[i]
		}

		input, err := readUpload(fh, title, description)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read file " + fh.Filename})
		}
		inputs = append(inputs, input)
	}

	result, err := h.images.BulkUpload(c.Context(), userID, inputs, c.FormValue("category"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(result)
}

func (h *ImageHandler) List(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	images, err := h.images.ListByUser(c.Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(images)
}

// PublicList pages through all assets without authentication.
func (h *ImageHandler) PublicList(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "24"))

	items, nextCursor, err := h.images.ListPublic(c.Context(), c.Query("cursor"), limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var cursor any
	if nextCursor != "" {
		cursor = nextCursor
	}
	return c.JSON(fiber.Map{"items": items, "nextCursor": cursor})
}

func (h *ImageHandler) Update(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	img, err := h.images.UpdateMeta(c.Context(), userID, c.Params("id"), body.Title, body.Description)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(img)
}

func (h *ImageHandler) Delete(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := h.images.Delete(c.Context(), userID, c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *ImageHandler) BatchDelete(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := h.images.BatchDelete(c.Context(), userID, body.IDs)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(result)
}

func readUpload(fh *multipart.FileHeader, title, description string) (services.UploadInput, error) {
	file, err := fh.Open()
	if err != nil {
		return services.UploadInput{}, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return services.UploadInput{}, err
	}

	return services.UploadInput{
		Filename:    fh.Filename,
		Content:     content,
		MimeType:    fh.Header.Get("Content-Type"),
		Title:       title,
		Description: description,
	}, nil
}
