package handlers

import (
	"bufio"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/piggy-devil/prompt-v1.0/internal/services"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chats  *services.ChatService
	logger *zap.Logger
}

func NewChatHandler(chats *services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

func (h *ChatHandler) NewSession(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	session, err := h.chats.CreateSession(c.Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"id": session.ID.Hex()})
}

func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	sessions, err := h.chats.ListSessions(c.Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(sessions)
}

func (h *ChatHandler) GetSession(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	session, err := h.chats.GetSession(c.Context(), userID, c.Params("chatId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(session)
}

func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	msgs, err := h.chats.ListMessages(c.Context(), userID, c.Params("chatId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(msgs)
}

func (h *ChatHandler) PostMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var body struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	msg, err := h.chats.AddMessage(c.Context(), userID, c.Params("chatId"), body.Role, body.Content)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(msg)
}

func (h *ChatHandler) DeleteSession(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := h.chats.DeleteSession(c.Context(), userID, c.Params("chatId")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Stream proxies a model completion to the client as plain text chunks and
// persists both sides of the exchange. Session and payload problems are
// rejected before the stream starts; later failures can only be logged, the
// status line is already gone.
func (h *ChatHandler) Stream(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	chatID := c.Params("chatId")

	var body struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prompt required"})
	}

	if _, err := h.chats.GetSession(c.Context(), userID, chatID); err != nil {
		return respondError(c, h.logger, err)
	}

	prompt, model := body.Prompt, body.Model

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// The writer runs after this handler returns, so it gets its own
	// context; the request context is no longer valid by then.
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		_, err := h.chats.StreamReply(ctx, userID, chatID, prompt, model, func(delta string) error {
			if _, err := w.WriteString(delta); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil {
			h.logger.Error("chat stream failed",
				zap.String("chat_id", chatID), zap.Error(err))
		}
	}))

	return nil
}
