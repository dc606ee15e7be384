package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/subdivision/pot-server/internal/apperror"
	"github.com/subdivision/pot-server/internal/model"
)

type fakeChatRepo struct {
	messages []model.ChatMessage
	nextID   int
}

func (f *fakeChatRepo) SaveMessage(ctx context.Context, msg *model.ChatMessage) error {
	f.nextID++
	msg.ID = fmt.Sprintf("msg-%04d", f.nextID)
	msg.SentAt = time.Now()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeChatRepo) History(ctx context.Context, potID string) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range f.messages {
		if m.PotID == potID {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestChatSaveMessage_MembersOnly(t *testing.T) {
	store := newFakePotStore()
	chatRepo := &fakeChatRepo{}
	potSvc := newTestPotService(store)
	chatSvc := NewChatService(chatRepo, store, testLogger())

	pot, err := potSvc.Create(context.Background(), "owner-1", potFields(model.PotFields{}))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	msg, err := chatSvc.SaveMessage(context.Background(), pot.ID, "owner-1", "anyone in?")
	if err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if msg.ID == "" || msg.SentAt.IsZero() {
		t.Errorf("SaveMessage() returned unpersisted message: %+v", msg)
	}

	_, err = chatSvc.SaveMessage(context.Background(), pot.ID, "stranger", "hello")
	if !errors.Is(err, apperror.ErrNotAMember) {
		t.Errorf("SaveMessage() by non-member error = %v, want ErrNotAMember", err)
	}

	_, err = chatSvc.SaveMessage(context.Background(), pot.ID, "owner-1", "   ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("SaveMessage() with blank text error = %v, want ErrValidation", err)
	}
}

func TestChatHistory_MembersOnly(t *testing.T) {
	store := newFakePotStore()
	chatRepo := &fakeChatRepo{}
	potSvc := newTestPotService(store)
	chatSvc := NewChatService(chatRepo, store, testLogger())

	pot, err := potSvc.Create(context.Background(), "owner-1", potFields(model.PotFields{}))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := potSvc.Join(context.Background(), pot.ID, "member-1"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	for _, text := range []string{"first", "second", "third"} {
		if _, err := chatSvc.SaveMessage(context.Background(), pot.ID, "owner-1", text); err != nil {
			t.Fatalf("SaveMessage(%q) error = %v", text, err)
		}
	}

	history, err := chatSvc.History(context.Background(), pot.ID, "member-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() returned %d messages, want 3", len(history))
	}
	if history[0].Message != "first" || history[2].Message != "third" {
		t.Errorf("History() order = [%s ... %s], want oldest-first", history[0].Message, history[2].Message)
	}

	if _, err := chatSvc.History(context.Background(), pot.ID, "stranger"); !errors.Is(err, apperror.ErrNotAMember) {
		t.Errorf("History() by non-member error = %v, want ErrNotAMember", err)
	}
}
