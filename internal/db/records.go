package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/recap/internal/models"
)

type settingsRow struct {
	Language   string                 `json:"language"`
	Timezone   string                 `json:"timezone"`
	ThreadMode bool                   `json:"thread_mode"`
	Provider   string                 `json:"provider"`
	Model      string                 `json:"model"`
	APIKeys    map[string]string      `json:"api_keys"`
	Updated    time.Time              `json:"updated"`
}

func (r settingsRow) toSettings(userID string) models.Settings {
	s := models.Settings{
		UserID:     userID,
		Language:   r.Language,
		Timezone:   r.Timezone,
		ThreadMode: r.ThreadMode,
		Provider:   r.Provider,
		Model:      r.Model,
		UpdatedAt:  r.Updated,
	}
	if len(r.APIKeys) > 0 {
		s.APIKeys = r.APIKeys
	}
	return s
}

type modeRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	UserID      string                 `json:"user_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Created     time.Time              `json:"created"`
}

func (r modeRow) toMode() (models.Mode, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.Mode{}, err
	}
	return models.Mode{
		ID:          id,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.Created,
	}, nil
}

type lastSeenRow struct {
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	Recorded  time.Time `json:"recorded"`
}

func lastSeenKey(userID, channelID string) string {
	return userID + "/" + channelID
}

// GetSettings returns the user's settings, or defaults when none are stored.
func (c *Client) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	results, err := surrealdb.Query[[]settingsRow](ctx, c.db, `
		SELECT * FROM type::record("user_settings", $id)
	`, map[string]any{"id": userID})
	if err != nil {
		return models.Settings{}, fmt.Errorf("get settings: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.DefaultSettings(userID), nil
	}
	return (*results)[0].Result[0].toSettings(userID), nil
}

// SetSettings merges patch into the stored settings. The merge happens
// client-side, so concurrent writers follow last-write-wins per record.
func (c *Client) SetSettings(ctx context.Context, userID string, patch models.SettingsPatch) (models.Settings, error) {
	current, err := c.GetSettings(ctx, userID)
	if err != nil {
		return models.Settings{}, err
	}
	next := current.Apply(patch)

	apiKeys := next.APIKeys
	if apiKeys == nil {
		apiKeys = map[string]string{}
	}

	results, err := surrealdb.Query[[]settingsRow](ctx, c.db, `
		UPSERT type::record("user_settings", $id) SET
			language = $language,
			timezone = $timezone,
			thread_mode = $thread_mode,
			provider = $provider,
			model = $model,
			api_keys = $api_keys,
			updated = time::now()
	`, map[string]any{
		"id":          userID,
		"language":    next.Language,
		"timezone":    next.Timezone,
		"thread_mode": next.ThreadMode,
		"provider":    next.Provider,
		"model":       next.Model,
		"api_keys":    apiKeys,
	})
	if err != nil {
		return models.Settings{}, fmt.Errorf("set settings: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.Settings{}, fmt.Errorf("set settings: no record returned")
	}
	return (*results)[0].Result[0].toSettings(userID), nil
}

// ListModes returns the user's modes ordered by creation time.
func (c *Client) ListModes(ctx context.Context, userID string) ([]models.Mode, error) {
	results, err := surrealdb.Query[[]modeRow](ctx, c.db, `
		SELECT * FROM user_mode WHERE user_id = $user ORDER BY created ASC
	`, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("list modes: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Mode{}, nil
	}

	out := make([]models.Mode, 0, len((*results)[0].Result))
	for _, row := range (*results)[0].Result {
		m, err := row.toMode()
		if err != nil {
			return nil, fmt.Errorf("list modes: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// AddMode creates a mode. The unique index on (user_id, lowercase name)
// rejects duplicates with ErrAlreadyExists.
func (c *Client) AddMode(ctx context.Context, userID, name, description string) (*models.Mode, error) {
	results, err := surrealdb.Query[[]modeRow](ctx, c.db, `
		CREATE user_mode SET user_id = $user, name = $name, description = $description
	`, map[string]any{
		"user":        userID,
		"name":        name,
		"description": description,
	})
	if err != nil {
		return nil, fmt.Errorf("add mode: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("add mode: no record returned")
	}
	m, err := (*results)[0].Result[0].toMode()
	if err != nil {
		return nil, fmt.Errorf("add mode: %w", err)
	}
	return &m, nil
}

// RemoveMode deletes the user's modes matching name case-insensitively and
// returns how many were removed.
func (c *Client) RemoveMode(ctx context.Context, userID, name string) (int, error) {
	results, err := surrealdb.Query[[]modeRow](ctx, c.db, `
		DELETE user_mode WHERE user_id = $user AND name_key = string::lowercase($name) RETURN BEFORE
	`, map[string]any{"user": userID, "name": name})
	if err != nil {
		return 0, fmt.Errorf("remove mode: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// RecordLastSeen stores the last message a user sent in a channel.
func (c *Client) RecordLastSeen(ctx context.Context, ls models.LastSeen) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("last_seen", $id) SET
			user_id = $user,
			channel_id = $channel,
			message_id = $message,
			recorded = time::now()
	`, map[string]any{
		"id":      lastSeenKey(ls.UserID, ls.ChannelID),
		"user":    ls.UserID,
		"channel": ls.ChannelID,
		"message": ls.MessageID,
	})
	if err != nil {
		return fmt.Errorf("record last seen: %w", wrapQueryError(err))
	}
	return nil
}

// LastSeen returns ErrNotFound when nothing was recorded for the pair.
func (c *Client) LastSeen(ctx context.Context, userID, channelID string) (*models.LastSeen, error) {
	results, err := surrealdb.Query[[]lastSeenRow](ctx, c.db, `
		SELECT user_id, channel_id, message_id, recorded FROM type::record("last_seen", $id)
	`, map[string]any{"id": lastSeenKey(userID, channelID)})
	if err != nil {
		return nil, fmt.Errorf("last seen: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: last seen for %s in %s", ErrNotFound, userID, channelID)
	}
	row := (*results)[0].Result[0]
	return &models.LastSeen{
		UserID:     row.UserID,
		ChannelID:  row.ChannelID,
		MessageID:  row.MessageID,
		RecordedAt: row.Recorded,
	}, nil
}
