// Package models defines data structures shared across recap's pipeline.
package models

import "time"

// Message is a single chat message retrieved from a conversation platform.
// Messages are fetched on demand and never persisted.
type Message struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
	Text       string    `json:"text"`
}

// Direction is the traversal direction of a history cursor.
type Direction int

const (
	// Backward walks from the newest message towards older ones (default).
	Backward Direction = iota
	// Forward walks from an "after" boundary towards newer messages.
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Cursor is an opaque boundary (a message ID) plus a traversal direction.
// An empty ID means "start at the most recent message".
type Cursor struct {
	ID        string
	Direction Direction
}

// Role identifies the author of a ChatMessage sent to a backend.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// ChatMessage is one unit of an ordered conversation passed to a backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
