package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/recap/internal/models"
)

var fixedNow = time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)

func fixedResolver() *Resolver {
	return &Resolver{Now: func() time.Time { return fixedNow }}
}

func TestResolveAbsoluteBoundariesInclusive(t *testing.T) {
	w, err := fixedResolver().Resolve("2024-01-01 00:00", "2024-01-02 00:00", "UTC")
	require.NoError(t, err)

	startMsg := models.Message{ID: "a", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	endMsg := models.Message{ID: "b", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	outside := models.Message{ID: "c", CreatedAt: time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC)}

	got := w.Filter([]models.Message{startMsg, endMsg, outside})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestResolveAbsoluteInTimezone(t *testing.T) {
	w, err := fixedResolver().Resolve("2024-01-01 09:00", "2024-01-01 17:30:15", "Asia/Tokyo")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 30, 15, 0, time.UTC), w.End)
	assert.Equal(t, time.UTC, w.Start.Location())
}

func TestResolveAbsoluteLayouts(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		expr string
		want time.Time
	}{
		{"2024-02-03", time.Date(2024, 2, 3, 0, 0, 0, 0, loc)},
		{"2024-02-03 04:05", time.Date(2024, 2, 3, 4, 5, 0, 0, loc)},
		{"2024-02-03T04:05", time.Date(2024, 2, 3, 4, 5, 0, 0, loc)},
		{"2024-02-03T04:05:06", time.Date(2024, 2, 3, 4, 5, 6, 0, loc)},
		{"2024-02-03T04:05:06+02:00", time.Date(2024, 2, 3, 2, 5, 6, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseExpr(tt.expr, loc, fixedNow)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestResolveRelativeIsTimezoneInvariant(t *testing.T) {
	for _, tz := range []string{"UTC", "America/New_York", "Asia/Kolkata", "Pacific/Chatham", ""} {
		t.Run(tz, func(t *testing.T) {
			w, err := fixedResolver().Resolve("2 hours ago", "now", tz)
			require.NoError(t, err)
			assert.Equal(t, fixedNow.Add(-2*time.Hour), w.Start)
			assert.Equal(t, fixedNow, w.End)
		})
	}
}

func TestParseRelativePhrases(t *testing.T) {
	tests := []struct {
		expr string
		want time.Duration
	}{
		{"30 minutes ago", 30 * time.Minute},
		{"1 hour ago", time.Hour},
		{"3 days ago", 72 * time.Hour},
		{"2 weeks ago", 14 * 24 * time.Hour},
		{"45s ago", 45 * time.Second},
		{"5 Hours", 5 * time.Hour},
		{"PT90M ago", 90 * time.Minute},
		{"P1D", 24 * time.Hour},
		{"now", 0},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseExpr(tt.expr, time.UTC, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, fixedNow.Add(-tt.want), got)
		})
	}
}

func TestResolveInvalidRange(t *testing.T) {
	_, err := fixedResolver().Resolve("1 hour ago", "2 hours ago", "UTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = fixedResolver().Resolve("2024-01-02 00:00", "2024-01-01 00:00", "Europe/Paris")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestResolveEqualBoundsAllowed(t *testing.T) {
	w, err := fixedResolver().Resolve("2024-01-01 00:00", "2024-01-01 00:00", "UTC")
	require.NoError(t, err)
	assert.Equal(t, w.Start, w.End)
}

func TestResolveInvalidFormat(t *testing.T) {
	for _, expr := range []string{"", "yesterday", "2 fortnights ago", "2024-13-45", "ago"} {
		t.Run(expr, func(t *testing.T) {
			_, err := fixedResolver().Resolve(expr, "now", "UTC")
			assert.ErrorIs(t, err, ErrInvalidTimeFormat)
		})
	}

	_, err := fixedResolver().Resolve("now", "soon", "UTC")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestResolveInvalidTimezone(t *testing.T) {
	_, err := fixedResolver().Resolve("1 hour ago", "now", "Mars/Olympus_Mons")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestResolveRejectsDurationsBeyondRange(t *testing.T) {
	for _, expr := range []string{"300 years ago", "600 years ago", "9999999 days ago", "P600Y ago", "PT3000000H ago"} {
		t.Run(expr, func(t *testing.T) {
			_, err := fixedResolver().Resolve(expr, "now", "UTC")
			assert.ErrorIs(t, err, ErrInvalidTimeFormat)
			assert.NotErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestResolveLongestRepresentableSpan(t *testing.T) {
	w, err := fixedResolver().Resolve("200 years ago", "now", "UTC")
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(-200*365*24*time.Hour), w.Start)
	assert.True(t, w.Start.Before(w.End))
}
