// Package window resolves user-supplied start/end expressions into an
// inclusive UTC time window.
package window

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"

	"github.com/raphaelgruber/recap/internal/models"
)

// Sentinel errors for window resolution.
var (
	// ErrInvalidTimeFormat indicates an expression that is neither an absolute
	// timestamp nor a relative phrase.
	ErrInvalidTimeFormat = errors.New("invalid time format")

	// ErrInvalidRange indicates a start that resolves after the end.
	ErrInvalidRange = errors.New("start time must not be after end time")

	// ErrInvalidTimezone indicates an unknown IANA timezone name.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

var (
	absolutePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	relativePattern = regexp.MustCompile(`(?i)^(\d+)\s*([a-z]+)(?:\s+ago)?$`)
)

// absoluteLayouts are tried in order for date-leading expressions.
var absoluteLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

var units = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"mo": 30 * 24 * time.Hour, "month": 30 * 24 * time.Hour, "months": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour, "year": 365 * 24 * time.Hour, "years": 365 * 24 * time.Hour,
}

// Resolver turns expressions into windows relative to an injected clock.
type Resolver struct {
	Now func() time.Time
}

// NewResolver returns a Resolver using the wall clock.
func NewResolver() *Resolver {
	return &Resolver{Now: time.Now}
}

// Resolve parses startExpr and endExpr in the named timezone and returns the
// inclusive UTC window between them. An empty timezone means UTC.
func (r *Resolver) Resolve(startExpr, endExpr, timezone string) (models.WindowSpec, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return models.WindowSpec{}, err
	}

	now := r.now()
	start, err := ParseExpr(startExpr, loc, now)
	if err != nil {
		return models.WindowSpec{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseExpr(endExpr, loc, now)
	if err != nil {
		return models.WindowSpec{}, fmt.Errorf("end: %w", err)
	}

	if start.After(end) {
		return models.WindowSpec{}, fmt.Errorf("%w: %s > %s",
			ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return models.WindowSpec{Start: start.UTC(), End: end.UTC()}, nil
}

func (r *Resolver) now() time.Time {
	if r == nil || r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// LoadLocation resolves an IANA timezone name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ParseExpr parses one expression. Date-leading expressions are local
// timestamps in loc; anything else is a relative phrase subtracted from now.
func ParseExpr(expr string, loc *time.Location, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("%w: empty expression", ErrInvalidTimeFormat)
	}

	if absolutePattern.MatchString(expr) {
		return parseAbsolute(expr, loc)
	}

	d, err := parseRelative(expr)
	if err != nil {
		return time.Time{}, err
	}
	// Subtracting from the instant keeps the result independent of loc.
	return now.Add(-d).In(loc), nil
}

func parseAbsolute(expr string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, expr); err == nil {
		return t, nil
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, expr, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (use YYYY-MM-DD HH:MM)", ErrInvalidTimeFormat, expr)
}

func parseRelative(expr string) (time.Duration, error) {
	lower := strings.ToLower(expr)
	if lower == "now" {
		return 0, nil
	}

	if m := relativePattern.FindStringSubmatch(expr); m != nil {
		unit, ok := units[strings.ToLower(m[2])]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidTimeFormat, m[2])
		}
		qty, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, expr)
		}
		if qty > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("%w: %q is too far back", ErrInvalidTimeFormat, expr)
		}
		return time.Duration(qty) * unit, nil
	}

	// ISO-8601 durations, e.g. "PT90M ago".
	iso := strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(expr), " AGO"))
	if strings.HasPrefix(iso, "P") {
		d, err := duration.Parse(iso)
		if err == nil {
			if isoNanos(d) >= math.MaxInt64 {
				return 0, fmt.Errorf("%w: %q is too far back", ErrInvalidTimeFormat, expr)
			}
			return d.ToTimeDuration(), nil
		}
	}

	return 0, fmt.Errorf("%w: %q (use a relative time like \"2 hours ago\")", ErrInvalidTimeFormat, expr)
}

// isoNanos sums d in nanoseconds as a float so that durations beyond
// time.Duration's range can be detected before conversion.
func isoNanos(d *duration.Duration) float64 {
	const (
		day  = float64(24 * time.Hour)
		year = 365 * day
	)
	return d.Years*year +
		d.Months*year/12 +
		d.Weeks*7*day +
		d.Days*day +
		d.Hours*float64(time.Hour) +
		d.Minutes*float64(time.Minute) +
		d.Seconds*float64(time.Second)
}
