// Package mode validates and manages user-authored summary modes.
package mode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
)

var (
	// ErrModeNotFound indicates the user has no mode with the given name.
	ErrModeNotFound = errors.New("mode not found")

	// ErrModeExists indicates a mode with the same name (case-insensitive) exists.
	ErrModeExists = errors.New("mode already exists")

	// ErrInvalidMode indicates an empty name or description.
	ErrInvalidMode = errors.New("invalid mode")
)

// Validate resolves a requested mode name. An empty name means the default
// mode-less path and returns nil, nil.
func Validate(ctx context.Context, modes store.ModeStore, userID, name string) (*models.Mode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	list, err := modes.ListModes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list modes: %w", err)
	}

	m, ok := models.FindMode(list, name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModeNotFound, name)
	}
	return m, nil
}

// Add creates a mode after checking its fields and name uniqueness.
func Add(ctx context.Context, modes store.ModeStore, userID, name, description string) (*models.Mode, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return nil, fmt.Errorf("%w: name and description are required", ErrInvalidMode)
	}

	m, err := modes.AddMode(ctx, userID, name, description)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, fmt.Errorf("%w: %q", ErrModeExists, name)
	}
	if err != nil {
		return nil, fmt.Errorf("add mode: %w", err)
	}
	return m, nil
}

// Remove deletes every mode matching name and returns how many were removed.
func Remove(ctx context.Context, modes store.ModeStore, userID, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: name is required", ErrInvalidMode)
	}

	n, err := modes.RemoveMode(ctx, userID, name)
	if err != nil {
		return 0, fmt.Errorf("remove mode: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrModeNotFound, name)
	}
	return n, nil
}
