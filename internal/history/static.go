package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/raphaelgruber/recap/internal/models"
)

// StaticSource serves a fixed channel history, e.g. a JSON export.
// Pages are returned newest-first, the way the platform API does.
type StaticSource struct {
	messages []models.Message // ascending
	index    map[string]int

	// Requests records every page request, in order.
	Requests []PageRequest
}

// Compile-time check that StaticSource implements Source.
var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a source over messages. The input is copied.
func NewStaticSource(messages []models.Message) *StaticSource {
	msgs := slices.Clone(messages)
	sortChronological(msgs)

	index := make(map[string]int, len(msgs))
	for i, m := range msgs {
		index[m.ID] = i
	}
	return &StaticSource{messages: msgs, index: index}
}

// LoadStaticSource reads a JSON array of messages from path.
func LoadStaticSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parse export %s: %w", path, err)
	}
	return NewStaticSource(msgs), nil
}

// Len returns the number of messages in the source.
func (s *StaticSource) Len() int {
	return len(s.messages)
}

// FetchPage implements Source. A cursor that names an unknown message yields
// an empty page.
func (s *StaticSource) FetchPage(ctx context.Context, req PageRequest) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Requests = append(s.Requests, req)

	limit := min(max(req.Limit, 0), PageMax)
	lo, hi := 0, len(s.messages)

	switch {
	case req.After != "":
		i, ok := s.index[req.After]
		if !ok {
			return nil, nil
		}
		lo = i + 1
		hi = min(lo+limit, len(s.messages))
	case req.Before != "":
		i, ok := s.index[req.Before]
		if !ok {
			return nil, nil
		}
		hi = i
		lo = max(hi-limit, 0)
	default:
		lo = max(hi-limit, 0)
	}

	page := slices.Clone(s.messages[lo:hi])
	slices.Reverse(page)
	return page, nil
}
