package models

import "time"

// Mode is a user-authored summary style. The description carries the
// behavioral intent injected into the prompt.
type Mode struct {
	ID          string    `json:"id" yaml:"-"`
	UserID      string    `json:"user_id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}
