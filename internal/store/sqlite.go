package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/raphaelgruber/recap/internal/models"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes settings read-merge-write transactions.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_settings (
		user_id     TEXT PRIMARY KEY,
		language    TEXT NOT NULL DEFAULT 'en',
		timezone    TEXT NOT NULL DEFAULT 'UTC',
		thread_mode INTEGER NOT NULL DEFAULT 0,
		provider    TEXT NOT NULL DEFAULT '',
		model       TEXT NOT NULL DEFAULT '',
		api_keys    TEXT,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_modes (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_user_modes_name ON user_modes(user_id, name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS last_seen (
		user_id     TEXT NOT NULL,
		channel_id  TEXT NOT NULL,
		message_id  TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (user_id, channel_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSettings implements SettingsStore.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	return getSettings(ctx, s.db, userID)
}

// SetSettings implements SettingsStore. The read-merge-write runs in one
// transaction so concurrent patches do not lose fields.
func (s *SQLiteStore) SetSettings(ctx context.Context, userID string, patch models.SettingsPatch) (models.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Settings{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getSettings(ctx, tx, userID)
	if err != nil {
		return models.Settings{}, err
	}

	next := current.Apply(patch)
	next.UserID = userID
	next.UpdatedAt = time.Now().UTC()

	var apiKeys any
	if len(next.APIKeys) > 0 {
		data, err := json.Marshal(next.APIKeys)
		if err != nil {
			return models.Settings{}, fmt.Errorf("encode api keys: %w", err)
		}
		apiKeys = string(data)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, language, timezone, thread_mode, provider, model, api_keys, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			language = excluded.language,
			timezone = excluded.timezone,
			thread_mode = excluded.thread_mode,
			provider = excluded.provider,
			model = excluded.model,
			api_keys = excluded.api_keys,
			updated_at = excluded.updated_at`,
		userID, next.Language, next.Timezone, boolToInt(next.ThreadMode),
		next.Provider, next.Model, apiKeys, next.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return models.Settings{}, fmt.Errorf("upsert settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Settings{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSettings(ctx context.Context, q rowQuerier, userID string) (models.Settings, error) {
	var (
		st         = models.Settings{UserID: userID}
		threadMode int
		apiKeys    sql.NullString
		updatedAt  string
	)
	err := q.QueryRowContext(ctx,
		`SELECT language, timezone, thread_mode, provider, model, api_keys, updated_at
		 FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&st.Language, &st.Timezone, &threadMode, &st.Provider, &st.Model, &apiKeys, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(userID), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("query settings: %w", err)
	}

	st.ThreadMode = threadMode != 0
	st.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	if apiKeys.Valid && apiKeys.String != "" {
		if err := json.Unmarshal([]byte(apiKeys.String), &st.APIKeys); err != nil {
			return models.Settings{}, fmt.Errorf("decode api keys: %w", err)
		}
	}
	return st, nil
}

// ListModes implements ModeStore.
func (s *SQLiteStore) ListModes(ctx context.Context, userID string) ([]models.Mode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM user_modes
		 WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query modes: %w", err)
	}
	defer rows.Close()

	var out []models.Mode
	for rows.Next() {
		m := models.Mode{UserID: userID}
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan mode: %w", err)
		}
		m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMode implements ModeStore.
func (s *SQLiteStore) AddMode(ctx context.Context, userID, name, description string) (*models.Mode, error) {
	m := &models.Mode{
		ID:          s.newID(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_modes (id, user_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Name, m.Description, m.CreatedAt.Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: mode %q", ErrAlreadyExists, name)
		}
		return nil, fmt.Errorf("insert mode: %w", err)
	}
	return m, nil
}

// RemoveMode implements ModeStore.
func (s *SQLiteStore) RemoveMode(ctx context.Context, userID, name string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_modes WHERE user_id = ? AND name = ? COLLATE NOCASE`, userID, name)
	if err != nil {
		return 0, fmt.Errorf("delete mode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// RecordLastSeen implements LastSeenStore.
func (s *SQLiteStore) RecordLastSeen(ctx context.Context, ls models.LastSeen) error {
	if ls.RecordedAt.IsZero() {
		ls.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO last_seen (user_id, channel_id, message_id, recorded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, channel_id) DO UPDATE SET
			message_id = excluded.message_id,
			recorded_at = excluded.recorded_at`,
		ls.UserID, ls.ChannelID, ls.MessageID, ls.RecordedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert last seen: %w", err)
	}
	return nil
}

// LastSeen implements LastSeenStore.
func (s *SQLiteStore) LastSeen(ctx context.Context, userID, channelID string) (*models.LastSeen, error) {
	ls := &models.LastSeen{UserID: userID, ChannelID: channelID}
	var recordedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id, recorded_at FROM last_seen WHERE user_id = ? AND channel_id = ?`,
		userID, channelID,
	).Scan(&ls.MessageID, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: last seen for %s in %s", ErrNotFound, userID, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("query last seen: %w", err)
	}
	ls.RecordedAt, _ = time.Parse(timeLayout, recordedAt)
	return ls, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
