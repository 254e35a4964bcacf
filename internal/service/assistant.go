package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/recap/internal/llm"
	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
)

// ErrEmptyPrompt indicates an assistant request without text.
var ErrEmptyPrompt = errors.New("prompt is empty")

const assistantSystemPrompt = "You are a helpful assistant. Answer clearly and concisely."

// AssistantService runs free-form chats and remembers the backend choice.
type AssistantService struct {
	store      store.SettingsStore
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewAssistantService creates a new assistant service.
func NewAssistantService(st store.SettingsStore, dispatcher Dispatcher, logger *slog.Logger) *AssistantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssistantService{store: st, dispatcher: dispatcher, logger: logger}
}

// AssistantRequest is one free-form prompt.
type AssistantRequest struct {
	UserID   string
	Prompt   string
	Provider models.ProviderSpec
}

// AssistantReply is the answer plus the resolved backend.
type AssistantReply struct {
	Text       string
	Provider   llm.Name
	Model      string
	ThreadMode bool
}

// Chat sends the prompt and, after a successful reply, stores the resolved
// provider as the user's preference. The model is stored only when the
// request, the settings or the process defaults named one, so a backend's
// built-in default never sticks to the next backend.
func (s *AssistantService) Chat(ctx context.Context, req AssistantRequest) (*AssistantReply, error) {
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		return nil, ErrEmptyPrompt
	}

	settings, err := s.store.GetSettings(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: assistantSystemPrompt},
		{Role: models.RoleUser, Content: text},
	}

	res, err := s.dispatcher.Dispatch(ctx, messages, req.Provider, settings)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	provider := string(res.Provider)
	model := res.ModelPreference
	if _, err := s.store.SetSettings(ctx, req.UserID, models.SettingsPatch{
		Provider: &provider,
		Model:    &model,
	}); err != nil {
		// The answer is still valid; only the preference was not saved.
		s.logger.Warn("failed to persist provider preference", "user", req.UserID, "error", err)
	}

	return &AssistantReply{
		Text:       res.Text,
		Provider:   res.Provider,
		Model:      res.Model,
		ThreadMode: settings.ThreadMode,
	}, nil
}
