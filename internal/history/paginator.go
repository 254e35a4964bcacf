// Package history retrieves bounded, ordered chat history from a message
// source using cursor-based pagination.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/recap/internal/models"
)

// PageMax is the largest page the platform protocol allows per request.
const PageMax = 100

// PageRequest asks a Source for one page of history.
// At most one of After and Before is set.
type PageRequest struct {
	Limit  int
	After  string
	Before string
}

// Source is a channel-bound history provider. FetchPage returns a
// possibly-empty batch in any order; callers must not rely on it.
type Source interface {
	FetchPage(ctx context.Context, req PageRequest) ([]models.Message, error)
}

// PageProgress describes one completed page fetch.
type PageProgress struct {
	Page      int
	Requested int
	Received  int
	Collected int
	Target    int
}

// FetchOptions configures FetchPaginated.
type FetchOptions struct {
	// AfterID walks forward from this message. Takes precedence over BeforeID.
	AfterID string
	// BeforeID walks backward from this message.
	BeforeID string
	// Filter drops messages for which it returns false.
	Filter func(models.Message) bool
	// OnPage is called after every page fetch.
	OnPage func(PageProgress)
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o FetchOptions) cursor() models.Cursor {
	if o.AfterID != "" {
		return models.Cursor{ID: o.AfterID, Direction: models.Forward}
	}
	return models.Cursor{ID: o.BeforeID, Direction: models.Backward}
}

// FetchPaginated collects up to target messages from src.
//
// The result is strictly ascending by creation time and free of duplicate IDs
// in both traversal directions. Running out of history is not an error: the
// partial result is returned as-is.
func FetchPaginated(ctx context.Context, src Source, target int, opts FetchOptions) ([]models.Message, error) {
	if target <= 0 {
		return []models.Message{}, nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cur := opts.cursor()
	collected := make([]models.Message, 0, min(target, 4*PageMax))
	seen := make(map[string]struct{}, cap(collected))

	for page := 1; len(collected) < target; page++ {
		req := PageRequest{Limit: min(PageMax, target-len(collected))}
		if cur.Direction == models.Forward {
			req.After = cur.ID
		} else {
			req.Before = cur.ID
		}

		start := time.Now()
		batch, err := src.FetchPage(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		logger.Debug("history page fetched",
			"page", page,
			"direction", cur.Direction.String(),
			"cursor", cur.ID,
			"limit", req.Limit,
			"received", len(batch),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		if len(batch) == 0 {
			notify(opts.OnPage, page, req.Limit, 0, len(collected), target)
			break
		}

		batch = slices.Clone(batch)
		sortChronological(batch)

		fresh := 0
		accept := func(m models.Message) bool {
			if _, dup := seen[m.ID]; dup {
				return true
			}
			seen[m.ID] = struct{}{}
			fresh++
			if opts.Filter != nil && !opts.Filter(m) {
				return true
			}
			collected = append(collected, m)
			return len(collected) < target
		}

		if cur.Direction == models.Forward {
			for _, m := range batch {
				if !accept(m) {
					break
				}
			}
			cur.ID = batch[len(batch)-1].ID
		} else {
			// Newest first so the most recent messages win when target is hit.
			for i := len(batch) - 1; i >= 0; i-- {
				if !accept(batch[i]) {
					break
				}
			}
			cur.ID = batch[0].ID
		}

		notify(opts.OnPage, page, req.Limit, len(batch), len(collected), target)

		if fresh == 0 {
			logger.Warn("history source returned no new messages, stopping", "page", page, "cursor", cur.ID)
			break
		}
	}

	if cur.Direction == models.Backward {
		slices.Reverse(collected)
	}

	if len(collected) < target {
		logger.Debug("history exhausted", "collected", len(collected), "target", target)
	}
	return collected, nil
}

func sortChronological(batch []models.Message) {
	slices.SortStableFunc(batch, func(a, b models.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func notify(fn func(PageProgress), page, requested, received, collected, target int) {
	if fn == nil {
		return
	}
	fn(PageProgress{
		Page:      page,
		Requested: requested,
		Received:  received,
		Collected: collected,
		Target:    target,
	})
}
