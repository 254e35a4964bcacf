package models

import (
	"strings"
	"time"
)

// Default settings values for users that never configured anything.
const (
	DefaultLanguage = "en"
	DefaultTimezone = "UTC"
)

// Settings holds a user's stored preferences.
type Settings struct {
	UserID     string            `json:"user_id"`
	Language   string            `json:"language"`
	Timezone   string            `json:"timezone"`
	ThreadMode bool              `json:"thread_mode"`
	Provider   string            `json:"provider,omitempty"`
	Model      string            `json:"model,omitempty"`
	APIKeys    map[string]string `json:"api_keys,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}

// DefaultSettings returns the settings used for a user with no stored row.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:   userID,
		Language: DefaultLanguage,
		Timezone: DefaultTimezone,
	}
}

// CredentialFor returns the user's stored key for a provider, if any.
func (s Settings) CredentialFor(provider string) string {
	if s.APIKeys == nil {
		return ""
	}
	return s.APIKeys[strings.ToLower(provider)]
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
// An entry in APIKeys with an empty value removes that provider's key.
type SettingsPatch struct {
	Language   *string
	Timezone   *string
	ThreadMode *bool
	Provider   *string
	Model      *string
	APIKeys    map[string]string
}

// Apply merges the patch into s and returns the result. s is not modified.
func (s Settings) Apply(p SettingsPatch) Settings {
	out := s
	if p.Language != nil {
		out.Language = *p.Language
	}
	if p.Timezone != nil {
		out.Timezone = *p.Timezone
	}
	if p.ThreadMode != nil {
		out.ThreadMode = *p.ThreadMode
	}
	if p.Provider != nil {
		out.Provider = *p.Provider
	}
	if p.Model != nil {
		out.Model = *p.Model
	}
	if len(p.APIKeys) > 0 {
		keys := make(map[string]string, len(s.APIKeys)+len(p.APIKeys))
		for k, v := range s.APIKeys {
			keys[k] = v
		}
		for k, v := range p.APIKeys {
			k = strings.ToLower(k)
			if v == "" {
				delete(keys, k)
				continue
			}
			keys[k] = v
		}
		out.APIKeys = keys
	}
	return out
}

// LastSeen records the last message a user sent in a channel.
type LastSeen struct {
	UserID     string    `json:"user_id"`
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	RecordedAt time.Time `json:"recorded_at"`
}
