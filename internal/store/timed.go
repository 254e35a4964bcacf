package store

import (
	"context"
	"errors"
	"time"

	"github.com/raphaelgruber/recap/internal/metrics"
	"github.com/raphaelgruber/recap/internal/models"
)

// Timed wraps a Store and records every call per method, with failures
// counted separately. ErrNotFound from LastSeen is a normal answer and not
// counted as a failure.
type Timed struct {
	inner   Store
	metrics *metrics.Collector
}

// Compile-time check that Timed implements Store.
var _ Store = (*Timed)(nil)

// NewTimed returns inner instrumented with c.
func NewTimed(inner Store, c *metrics.Collector) *Timed {
	return &Timed{inner: inner, metrics: c}
}

func (t *Timed) record(method string, start time.Time, err error) {
	t.metrics.RecordStoreCall(method, time.Since(start), err)
}

func (t *Timed) GetSettings(ctx context.Context, userID string) (s models.Settings, err error) {
	defer func(start time.Time) { t.record("get_settings", start, err) }(time.Now())
	return t.inner.GetSettings(ctx, userID)
}

func (t *Timed) SetSettings(ctx context.Context, userID string, patch models.SettingsPatch) (s models.Settings, err error) {
	defer func(start time.Time) { t.record("set_settings", start, err) }(time.Now())
	return t.inner.SetSettings(ctx, userID, patch)
}

func (t *Timed) ListModes(ctx context.Context, userID string) (modes []models.Mode, err error) {
	defer func(start time.Time) { t.record("list_modes", start, err) }(time.Now())
	return t.inner.ListModes(ctx, userID)
}

func (t *Timed) AddMode(ctx context.Context, userID, name, description string) (m *models.Mode, err error) {
	defer func(start time.Time) { t.record("add_mode", start, err) }(time.Now())
	return t.inner.AddMode(ctx, userID, name, description)
}

func (t *Timed) RemoveMode(ctx context.Context, userID, name string) (n int, err error) {
	defer func(start time.Time) { t.record("remove_mode", start, err) }(time.Now())
	return t.inner.RemoveMode(ctx, userID, name)
}

func (t *Timed) RecordLastSeen(ctx context.Context, ls models.LastSeen) (err error) {
	defer func(start time.Time) { t.record("record_last_seen", start, err) }(time.Now())
	return t.inner.RecordLastSeen(ctx, ls)
}

func (t *Timed) LastSeen(ctx context.Context, userID, channelID string) (ls *models.LastSeen, err error) {
	defer func(start time.Time) {
		failed := err
		if errors.Is(err, ErrNotFound) {
			failed = nil
		}
		t.record("last_seen", start, failed)
	}(time.Now())
	return t.inner.LastSeen(ctx, userID, channelID)
}

// Close closes the wrapped store.
func (t *Timed) Close() error {
	return t.inner.Close()
}
