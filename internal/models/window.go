package models

import "time"

// WindowSpec is an inclusive UTC instant range.
type WindowSpec struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the window, boundaries included.
func (w WindowSpec) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Filter returns the messages whose creation time lies within the window.
// Input order is preserved.
func (w WindowSpec) Filter(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if w.Contains(m.CreatedAt) {
			out = append(out, m)
		}
	}
	return out
}
