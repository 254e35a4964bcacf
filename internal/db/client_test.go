package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
)

func strPtr(s string) *string { return &s }

// uniqueUser isolates tests sharing one database.
func uniqueUser(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestSchemaApplied(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	result, err := surrealdb.Query[any](ctx, c.db, "INFO FOR DB", nil)
	require.NoError(t, err)
	require.NotEmpty(t, *result)
	info := fmt.Sprint((*result)[0].Result)
	for _, name := range []string{"user_settings", "user_mode", "last_seen"} {
		assert.Contains(t, info, name)
	}
}

func TestConfigEndpointAndCredentials(t *testing.T) {
	cfg := Config{URL: "ws://db:8000/rpc", Namespace: "ns", Database: "d", Username: "u", Password: "p"}
	assert.Equal(t, "ws://db:8000", cfg.endpoint())
	assert.Equal(t, surrealdb.Auth{Username: "u", Password: "p"}, cfg.credentials())

	cfg.AuthLevel = "database"
	assert.Equal(t, surrealdb.Auth{Namespace: "ns", Database: "d", Username: "u", Password: "p"}, cfg.credentials())
}

func TestConfigRetryerIsBounded(t *testing.T) {
	assert.Equal(t, defaultReconnects, Config{}.retryer().MaxRetries)
	assert.Equal(t, 7, Config{Reconnects: 7}.retryer().MaxRetries)
}

func TestNewClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	start := time.Now()
	_, err := NewClient(ctx, Config{URL: "ws://127.0.0.1:1/rpc", Reconnects: 1}, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 15*time.Second)
}

func TestSettingsDefaultsAndMerge(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	got, err := c.GetSettings(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(user), got)

	_, err = c.SetSettings(ctx, user, models.SettingsPatch{
		Language: strPtr("es"),
		APIKeys:  map[string]string{"gemini": "AIza0123456789"},
	})
	require.NoError(t, err)
	updated, err := c.SetSettings(ctx, user, models.SettingsPatch{Provider: strPtr("gemini")})
	require.NoError(t, err)
	assert.Equal(t, "es", updated.Language)

	got, err = c.GetSettings(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "es", got.Language)
	assert.Equal(t, models.DefaultTimezone, got.Timezone)
	assert.Equal(t, "gemini", got.Provider)
	assert.Equal(t, "AIza0123456789", got.CredentialFor("gemini"))
	assert.False(t, got.UpdatedAt.IsZero())

	_, err = c.SetSettings(ctx, user, models.SettingsPatch{APIKeys: map[string]string{"gemini": ""}})
	require.NoError(t, err)
	got, err = c.GetSettings(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, got.CredentialFor("gemini"))
}

func TestModes(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	m, err := c.AddMode(ctx, user, "Casual", "Relaxed tone.")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Casual", m.Name)

	_, err = c.AddMode(ctx, user, "formal", "Formal tone.")
	require.NoError(t, err)

	_, err = c.AddMode(ctx, user, "CASUAL", "Duplicate.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrAlreadyExists), "expected ErrAlreadyExists, got %v", err)

	modes, err := c.ListModes(ctx, user)
	require.NoError(t, err)
	require.Len(t, modes, 2)
	assert.Equal(t, "Casual", modes[0].Name)

	n, err := c.RemoveMode(ctx, user, "casual")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.RemoveMode(ctx, user, "casual")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLastSeen(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()
	user := uniqueUser(t)

	_, err := c.LastSeen(ctx, user, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.RecordLastSeen(ctx, models.LastSeen{UserID: user, ChannelID: "c1", MessageID: "10"}))
	require.NoError(t, c.RecordLastSeen(ctx, models.LastSeen{UserID: user, ChannelID: "c1", MessageID: "20"}))

	ls, err := c.LastSeen(ctx, user, "c1")
	require.NoError(t, err)
	assert.Equal(t, "20", ls.MessageID)
	assert.Equal(t, "c1", ls.ChannelID)
}

func TestWrapQueryError(t *testing.T) {
	assert.Nil(t, wrapQueryError(nil))

	plain := errors.New("network down")
	assert.Equal(t, plain, wrapQueryError(plain))

	dup := &surrealdb.QueryError{Message: "Database index `user_mode_unique` already contains ['u', 'casual']"}
	assert.ErrorIs(t, wrapQueryError(dup), ErrAlreadyExists)

	conflict := &surrealdb.QueryError{Message: "Transaction conflict: resource busy"}
	assert.ErrorIs(t, wrapQueryError(conflict), ErrTransactionConflict)
}
