package mode

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "modes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type failingModes struct{ store.ModeStore }

var errBoom = errors.New("boom")

func (failingModes) ListModes(context.Context, string) ([]models.Mode, error) {
	return nil, errBoom
}

func TestValidateEmptyNameIsDefault(t *testing.T) {
	m, err := Validate(context.Background(), failingModes{}, "u1", "  ")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestValidateCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := Add(ctx, s, "u1", "Casual", "Relaxed, friendly tone.")
	require.NoError(t, err)

	m, err := Validate(ctx, s, "u1", "cASUAL")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Casual", m.Name)
	assert.Equal(t, "Relaxed, friendly tone.", m.Description)
}

func TestValidateUnknownMode(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := Add(ctx, s, "u1", "casual", "Relaxed.")
	require.NoError(t, err)

	_, err = Validate(ctx, s, "u1", "formal")
	assert.ErrorIs(t, err, ErrModeNotFound)

	// Modes are scoped per user.
	_, err = Validate(ctx, s, "u2", "casual")
	assert.ErrorIs(t, err, ErrModeNotFound)
}

func TestValidateStoreError(t *testing.T) {
	_, err := Validate(context.Background(), failingModes{}, "u1", "casual")
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrModeNotFound)
}

func TestAddRejectsInvalidAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := Add(ctx, s, "u1", "", "desc")
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = Add(ctx, s, "u1", "name", "   ")
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = Add(ctx, s, "u1", "brief", "Short.")
	require.NoError(t, err)
	_, err = Add(ctx, s, "u1", "BRIEF", "Also short.")
	assert.ErrorIs(t, err, ErrModeExists)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := Add(ctx, s, "u1", "brief", "Short.")
	require.NoError(t, err)

	n, err := Remove(ctx, s, "u1", "Brief")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = Remove(ctx, s, "u1", "brief")
	assert.ErrorIs(t, err, ErrModeNotFound)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	_, err := Add(ctx, src, "u1", "casual", "Relaxed.")
	require.NoError(t, err)
	_, err = Add(ctx, src, "u1", "formal", "Line one.\nLine two.")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Export(ctx, src, "u1", &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "modes:")
	assert.NotContains(t, buf.String(), "user_id")

	dst := newStore(t)
	_, err = Add(ctx, dst, "u2", "casual", "Existing.")
	require.NoError(t, err)

	res, err := Import(ctx, dst, "u2", &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"formal"}, res.Added)
	assert.Equal(t, []string{"casual"}, res.Skipped)

	m, err := Validate(ctx, dst, "u2", "formal")
	require.NoError(t, err)
	assert.Equal(t, "Line one.\nLine two.", m.Description)
}

func TestImportInvalidEntry(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	doc := "modes:\n  - name: ok\n    description: fine\n  - name: broken\n"
	res, err := Import(ctx, s, "u1", strings.NewReader(doc))
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, []string{"ok"}, res.Added)
}

func TestImportEmptyDocument(t *testing.T) {
	res, err := Import(context.Background(), newStore(t), "u1", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Added)
}
