package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piggy-devil/prompt-v1.0/internal/llm"
	"github.com/piggy-devil/prompt-v1.0/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NewSessionTitle is the placeholder title until the first human message
// names the session.
const NewSessionTitle = "New chat"

// titleLimit is how many runes of the first message become the session title.
const titleLimit = 40

// ChatStore persists chat sessions and messages. FindSession returns
// (nil, nil) for unknown ids.
type ChatStore interface {
	CreateSession(ctx context.Context, userID, title string) (*models.ChatSession, error)
	FindSession(ctx context.Context, id string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error)
	DeleteSession(ctx context.Context, id primitive.ObjectID) error
	TouchSession(ctx context.Context, id primitive.ObjectID) error
	SetSessionTitle(ctx context.Context, id primitive.ObjectID, title string) error
	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, sessionID primitive.ObjectID) ([]models.ChatMessage, error)
	CountMessages(ctx context.Context, sessionID primitive.ObjectID) (int64, error)
}

// LLMClient streams a chat completion, invoking onDelta per fragment and
// returning the assembled reply.
type LLMClient interface {
	StreamChat(ctx context.Context, model string, messages []llm.Message, onDelta func(string) error) (string, error)
}

type ChatService struct {
	chats  ChatStore
	llm    LLMClient
	logger *zap.Logger
}

func NewChatService(chats ChatStore, llmClient LLMClient, logger *zap.Logger) *ChatService {
	return &ChatService{chats: chats, llm: llmClient, logger: logger}
}

func (s *ChatService) CreateSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	return s.chats.CreateSession(ctx, userID, NewSessionTitle)
}

func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	return s.chats.ListSessions(ctx, userID)
}

// GetSession returns the session with its messages, ownership-checked.
func (s *ChatService) GetSession(ctx context.Context, userID, chatID string) (*models.ChatSession, error) {
	session, err := s.ownedSession(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.chats.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Messages = msgs
	return session, nil
}

func (s *ChatService) ListMessages(ctx context.Context, userID, chatID string) ([]models.ChatMessage, error) {
	session, err := s.ownedSession(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	return s.chats.ListMessages(ctx, session.ID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, chatID string) error {
	session, err := s.ownedSession(ctx, userID, chatID)
	if err != nil {
		return err
	}
	return s.chats.DeleteSession(ctx, session.ID)
}

// AddMessage appends a message and touches the session. The first human
// message also titles the session after its content.
func (s *ChatService) AddMessage(ctx context.Context, userID, chatID, role, content string) (*models.ChatMessage, error) {
	if role != models.RoleHuman && role != models.RoleAI {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrValidation)
	}

	session, err := s.ownedSession(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ChatSessionID: session.ID,
		Role:          role,
		Content:       content,
		CreatedAt:     time.Now(),
	}
	if err := s.chats.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.chats.TouchSession(ctx, session.ID); err != nil {
		return nil, err
	}

	count, err := s.chats.CountMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if count == 1 && role == models.RoleHuman {
		if err := s.chats.SetSessionTitle(ctx, session.ID, sessionTitle(content)); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

// StreamReply records the human prompt, streams the model's answer through
// onDelta, and persists the assembled reply once the stream settles.
func (s *ChatService) StreamReply(ctx context.Context, userID, chatID, prompt, model string, onDelta func(string) error) (*models.ChatMessage, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrValidation)
	}

	session, err := s.ownedSession(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	if _, err := s.AddMessage(ctx, userID, chatID, models.RoleHuman, prompt); err != nil {
		return nil, err
	}

	history, err := s.chats.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.StreamChat(ctx, model, toLLMMessages(history), onDelta)
	if err != nil {
		return nil, err
	}

	reply, err := s.AddMessage(ctx, userID, chatID, models.RoleAI, answer)
	if err != nil {
		// The answer already streamed to the client; losing the row is
		// a server-side problem only.
		s.logger.Error("persist AI reply failed",
			zap.String("chat_id", chatID), zap.Error(err))
		return nil, err
	}
	return reply, nil
}

func (s *ChatService) ownedSession(ctx context.Context, userID, chatID string) (*models.ChatSession, error) {
	session, err := s.chats.FindSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}

func sessionTitle(content string) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) <= titleLimit {
		return string(r)
	}
	return string(r[:titleLimit]) + "…"
}

func toLLMMessages(history []models.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAI {
			role = "assistant"
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
