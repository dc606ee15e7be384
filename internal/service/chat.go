package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/subdivision/pot-server/internal/apperror"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/repository"
)

// ChatService handles a pot's chat channel. Messages are only accepted from
// current members; history is readable by members only as well.
type ChatService struct {
	messages repository.ChatMessageRepository
	members  repository.MembershipRepository
	logger   *slog.Logger
}

func NewChatService(
	messages repository.ChatMessageRepository,
	members repository.MembershipRepository,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		messages: messages,
		members:  members,
		logger:   logger,
	}
}

// SaveMessage persists one chat message after checking the sender is a
// member of the pot. The stored message is returned with its ID and
// timestamp filled in.
func (s *ChatService) SaveMessage(ctx context.Context, potID, senderID, text string) (*model.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperror.ValidationFailed("message", "must not be blank")
	}

	member, err := s.members.Exists(ctx, potID, senderID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: checking membership: %w", err)
	}
	if !member {
		return nil, apperror.NotAMember(potID, senderID)
	}

	msg := &model.ChatMessage{
		PotID:    potID,
		SenderID: senderID,
		Message:  text,
	}
	if err := s.messages.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("service/chat: saving message: %w", err)
	}
	return msg, nil
}

// CanAccess reports whether the user currently holds a seat in the pot,
// and may therefore attach to its chat room.
func (s *ChatService) CanAccess(ctx context.Context, potID, userID string) (bool, error) {
	member, err := s.members.Exists(ctx, potID, userID)
	if err != nil {
		return false, fmt.Errorf("service/chat: checking membership: %w", err)
	}
	return member, nil
}

// History returns a pot's messages oldest-first. Member-only.
func (s *ChatService) History(ctx context.Context, potID, userID string) ([]model.ChatMessage, error) {
	member, err := s.members.Exists(ctx, potID, userID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: checking membership: %w", err)
	}
	if !member {
		return nil, apperror.NotAMember(potID, userID)
	}

	msgs, err := s.messages.History(ctx, potID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading history: %w", err)
	}
	return msgs, nil
}
