package convo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/common"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultTitle = "New conversation"
)

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, userID uint64, title string, linkID *string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	c := &Conversation{
		ID:     id,
		UserID: userID,
		LinkID: linkID,
		Title:  title,
	}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Conversation, error) {
	return s.repo.ListConversationsByUser(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID uint64, conversationID string) error {
	return s.repo.DeleteConversation(ctx, userID, conversationID)
}

func (s *Service) validateOwner(ctx context.Context, userID uint64, conversationID string) error {
	c, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		// hide existence
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Service) ListMessages(ctx context.Context, userID uint64, conversationID string, limit int, beforeID uint64) ([]Message, error) {
	if err := s.validateOwner(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, userID, conversationID, limit, beforeID)
}

// AppendMessage stores one transcript message. Assistant messages are
// posted by the client as well; the voice session runs client-side and
// this service only keeps the record. An idempotency key makes retried
// posts safe.
func (s *Service) AppendMessage(ctx context.Context, userID uint64, conversationID, role, content string, idempotencyKey *string) (*Message, bool, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, false, ErrInvalidInput
	}
	if strings.TrimSpace(content) == "" {
		return nil, false, ErrInvalidInput
	}
	if err := s.validateOwner(ctx, userID, conversationID); err != nil {
		return nil, false, err
	}

	m := &Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		IdempotencyKey: idempotencyKey,
	}
	return s.repo.InsertMessageOrGetExisting(ctx, m)
}
