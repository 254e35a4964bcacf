package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/raphaelgruber/recap/internal/models"
)

const (
	// DefaultDiscordAPI is the Discord REST API base URL.
	DefaultDiscordAPI = "https://discord.com/api/v10"

	// discordUnknownMessage is the JSON error code for a missing message.
	discordUnknownMessage = 10008
)

// ErrDiscordAPI wraps non-success responses from the Discord API.
var ErrDiscordAPI = errors.New("discord api error")

// DiscordClient is a minimal Discord REST client for reading channel history.
type DiscordClient struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

// NewDiscordClient creates a client authenticating with a bot token.
// If apiBase is empty, DefaultDiscordAPI is used.
func NewDiscordClient(apiBase, token string, requestTimeout time.Duration) *DiscordClient {
	if apiBase == "" {
		apiBase = DefaultDiscordAPI
	}
	return &DiscordClient{
		apiBase: apiBase,
		token:   token,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Channel returns a Source bound to one channel.
func (c *DiscordClient) Channel(channelID string) *DiscordSource {
	return &DiscordSource{client: c, channelID: channelID}
}

// DiscordSource reads one channel's history.
type DiscordSource struct {
	client    *DiscordClient
	channelID string
}

// Compile-time check that DiscordSource implements Source.
var _ Source = (*DiscordSource)(nil)

type discordMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Author    struct {
		ID         string  `json:"id"`
		Username   string  `json:"username"`
		GlobalName *string `json:"global_name"`
	} `json:"author"`
}

type discordError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// FetchPage implements Source.
func (s *DiscordSource) FetchPage(ctx context.Context, req PageRequest) ([]models.Message, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(min(max(req.Limit, 1), PageMax)))
	if req.After != "" {
		params.Set("after", req.After)
	} else if req.Before != "" {
		params.Set("before", req.Before)
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages?%s",
		s.client.apiBase, url.PathEscape(s.channelID), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bot "+s.client.token)
	httpReq.Header.Set("User-Agent", "DiscordBot (https://github.com/raphaelgruber/recap, 0.1.0)")

	resp, err := s.client.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr discordError
		_ = json.Unmarshal(body, &apiErr)
		if resp.StatusCode == http.StatusNotFound && apiErr.Code == discordUnknownMessage {
			// Cursor points at a deleted message: treat as exhausted.
			return nil, nil
		}
		return nil, fmt.Errorf("%w (status %d): %s", ErrDiscordAPI, resp.StatusCode, truncate(string(body), 400))
	}

	var raw []discordMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	msgs := make([]models.Message, 0, len(raw))
	for _, m := range raw {
		name := m.Author.Username
		if m.Author.GlobalName != nil && *m.Author.GlobalName != "" {
			name = *m.Author.GlobalName
		}
		msgs = append(msgs, models.Message{
			ID:         m.ID,
			AuthorID:   m.Author.ID,
			AuthorName: name,
			CreatedAt:  m.Timestamp.UTC(),
			Text:       m.Content,
		})
	}
	return msgs, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
