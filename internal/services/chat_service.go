package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finledger/internal/assistant"
	"finledger/internal/core"
)

type ChatStore interface {
	AppendChatMessage(ctx context.Context, m core.ChatMessage) (core.ChatMessage, error)
	ListChatMessages(ctx context.Context, userID string, limit int) ([]core.ChatMessage, error)
}

// Replier answers a prompt given the conversation so far and the user's
// current figures.
type Replier interface {
	Reply(ctx context.Context, history []core.ChatMessage, prompt string, d core.Dashboard) (string, error)
}

// DashboardSource provides the figures the assistant is told about.
type DashboardSource interface {
	Dashboard(ctx context.Context, userID string, now time.Time) (core.Dashboard, error)
}

type ChatService struct {
	storage    ChatStore
	assistant  Replier
	dashboards DashboardSource
	timeout    time.Duration
}

func NewChatService(storage ChatStore, assistant Replier, dashboards DashboardSource, timeout time.Duration) *ChatService {
	return &ChatService{
		storage:    storage,
		assistant:  assistant,
		dashboards: dashboards,
		timeout:    timeout,
	}
}

// Send records the user's prompt, asks the assistant and records its answer.
// When the assistant fails, the fallback apology is recorded and returned
// instead; the failure is only logged.
func (s *ChatService) Send(ctx context.Context, userID, prompt string, now time.Time) (core.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return core.ChatMessage{}, core.ErrEmptyPrompt
	}
	if strings.TrimSpace(userID) == "" {
		return core.ChatMessage{}, core.ErrEmptyUser
	}

	history, err := s.storage.ListChatMessages(ctx, userID, assistant.HistoryWindow)
	if err != nil {
		return core.ChatMessage{}, fmt.Errorf("load chat history: %w", err)
	}

	dashboard, err := s.dashboards.Dashboard(ctx, userID, now)
	if err != nil {
		return core.ChatMessage{}, fmt.Errorf("load dashboard: %w", err)
	}

	if _, err := s.storage.AppendChatMessage(ctx, core.ChatMessage{
		UserID:    userID,
		Role:      core.RoleUser,
		Content:   prompt,
		CreatedAt: now.UTC(),
	}); err != nil {
		return core.ChatMessage{}, fmt.Errorf("save prompt: %w", err)
	}

	askCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		askCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.assistant.Reply(askCtx, history, prompt, dashboard)
	if err != nil {
		slog.ErrorContext(ctx, "Assistant failed, recording fallback reply",
			"user_id", userID,
			"error", err)
		if reply == "" {
			reply = assistant.FallbackReply(err)
		}
	}

	saved, err := s.storage.AppendChatMessage(ctx, core.ChatMessage{
		UserID:    userID,
		Role:      core.RoleModel,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return core.ChatMessage{}, fmt.Errorf("save reply: %w", err)
	}
	return saved, nil
}

func (s *ChatService) History(ctx context.Context, userID string) ([]core.ChatMessage, error) {
	msgs, err := s.storage.ListChatMessages(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	return msgs, nil
}
