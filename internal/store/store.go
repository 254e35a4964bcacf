// Package store defines persistence for per-user settings, summary modes and
// last-seen markers, with a SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/raphaelgruber/recap/internal/models"
)

// Sentinel errors shared by every backend. Use errors.Is in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a record with the same key already exists.
	ErrAlreadyExists = errors.New("already exists")
)

// SettingsStore persists user preferences.
type SettingsStore interface {
	// GetSettings returns the user's settings, or defaults if none are stored.
	GetSettings(ctx context.Context, userID string) (models.Settings, error)

	// SetSettings merges patch into the stored settings and returns the result.
	SetSettings(ctx context.Context, userID string, patch models.SettingsPatch) (models.Settings, error)
}

// ModeStore persists user-authored summary modes.
type ModeStore interface {
	// ListModes returns the user's modes ordered by creation time.
	ListModes(ctx context.Context, userID string) ([]models.Mode, error)

	// AddMode creates a mode. A case-insensitive name clash returns ErrAlreadyExists.
	AddMode(ctx context.Context, userID, name, description string) (*models.Mode, error)

	// RemoveMode deletes modes matching name case-insensitively and returns
	// how many were removed.
	RemoveMode(ctx context.Context, userID, name string) (int, error)
}

// LastSeenStore tracks the last message a user sent per channel.
type LastSeenStore interface {
	RecordLastSeen(ctx context.Context, ls models.LastSeen) error

	// LastSeen returns ErrNotFound when nothing was recorded.
	LastSeen(ctx context.Context, userID, channelID string) (*models.LastSeen, error)
}

// Store is the full persistence surface.
type Store interface {
	SettingsStore
	ModeStore
	LastSeenStore

	Close() error
}
