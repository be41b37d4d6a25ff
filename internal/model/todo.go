package model

import "time"

type Todo struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// CreateTodo is the POST body. The id is always generated server-side.
type CreateTodo struct {
	Text string `json:"text"`
}

// TodoPatch is the PUT body: fields left nil keep their stored value.
type TodoPatch struct {
	ID        int64   `json:"id"`
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

type DeleteTodo struct {
	ID int64 `json:"id"`
}

const (
	StatusAll       = "all"
	StatusCompleted = "completed"
	StatusActive    = "active"
)

type TodoFilter struct {
	Status string
}

// Matches reports whether t passes the filter. An empty status or "all"
// matches everything, "completed" matches finished todos and any other
// value matches the unfinished ones.
func (f TodoFilter) Matches(t Todo) bool {
	switch f.Status {
	case "", StatusAll:
		return true
	case StatusCompleted:
		return t.Completed
	default:
		return !t.Completed
	}
}

// Apply merges the non-nil fields of p onto t.
func (p TodoPatch) Apply(t Todo) Todo {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// SeedTodos returns the records a fresh mock store starts with.
func SeedTodos() []Todo {
	return []Todo{
		{ID: 1, Text: "Learn SvelteKit", Completed: true},
		{ID: 2, Text: "Learn TanStack Query", Completed: false},
	}
}

// ServerTime is the payload of GET /api/time.
type ServerTime struct {
	Time time.Time `json:"time"`
}
