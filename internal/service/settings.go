package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/recap/internal/llm"
	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
	"github.com/raphaelgruber/recap/internal/window"
)

// MinAPIKeyLength is the shortest key accepted by SetAPIKey.
const MinAPIKeyLength = 10

var (
	// ErrInvalidLanguage indicates a language code outside 2-5 characters.
	ErrInvalidLanguage = errors.New("invalid language code")

	// ErrInvalidAPIKey indicates a key that is too short to be real.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// SettingsService validates and stores user preferences.
type SettingsService struct {
	store store.SettingsStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(st store.SettingsStore) *SettingsService {
	return &SettingsService{store: st}
}

// Get returns the user's settings.
func (s *SettingsService) Get(ctx context.Context, userID string) (models.Settings, error) {
	return s.store.GetSettings(ctx, userID)
}

// SetLanguage stores a lowercased 2-5 character language code.
func (s *SettingsService) SetLanguage(ctx context.Context, userID, code string) (models.Settings, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) < 2 || len(code) > 5 {
		return models.Settings{}, fmt.Errorf("%w: %q (use a 2-5 character code such as en, es, ja)", ErrInvalidLanguage, code)
	}
	return s.store.SetSettings(ctx, userID, models.SettingsPatch{Language: &code})
}

// SetTimezone stores an IANA timezone after checking it loads.
func (s *SettingsService) SetTimezone(ctx context.Context, userID, tz string) (models.Settings, error) {
	tz = strings.TrimSpace(tz)
	loc, err := window.LoadLocation(tz)
	if err != nil {
		return models.Settings{}, err
	}
	name := loc.String()
	return s.store.SetSettings(ctx, userID, models.SettingsPatch{Timezone: &name})
}

// SetThreadMode toggles delivery of results as a thread.
func (s *SettingsService) SetThreadMode(ctx context.Context, userID string, enabled bool) (models.Settings, error) {
	return s.store.SetSettings(ctx, userID, models.SettingsPatch{ThreadMode: &enabled})
}

// SetPreference stores the preferred provider and model. An empty value
// clears that field.
func (s *SettingsService) SetPreference(ctx context.Context, userID, provider, model string) (models.Settings, error) {
	var name string
	if provider != "" {
		n, ok := llm.ParseName(provider)
		if !ok {
			return models.Settings{}, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, provider)
		}
		name = string(n)
	}
	model = strings.TrimSpace(model)
	return s.store.SetSettings(ctx, userID, models.SettingsPatch{Provider: &name, Model: &model})
}

// SetAPIKey stores a personal key for one provider.
func (s *SettingsService) SetAPIKey(ctx context.Context, userID, provider, key string) (models.Settings, error) {
	name, ok := llm.ParseName(provider)
	if !ok {
		return models.Settings{}, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, provider)
	}
	key = strings.TrimSpace(key)
	if len(key) < MinAPIKeyLength {
		return models.Settings{}, fmt.Errorf("%w: must be at least %d characters", ErrInvalidAPIKey, MinAPIKeyLength)
	}
	return s.store.SetSettings(ctx, userID, models.SettingsPatch{APIKeys: map[string]string{string(name): key}})
}

// RemoveAPIKey deletes the personal key for one provider. It reports
// whether a key was present.
func (s *SettingsService) RemoveAPIKey(ctx context.Context, userID, provider string) (bool, error) {
	name, ok := llm.ParseName(provider)
	if !ok {
		return false, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, provider)
	}

	current, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	if current.CredentialFor(string(name)) == "" {
		return false, nil
	}

	_, err = s.store.SetSettings(ctx, userID, models.SettingsPatch{APIKeys: map[string]string{string(name): ""}})
	return err == nil, err
}
