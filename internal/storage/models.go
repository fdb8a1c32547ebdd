package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Reminder statuses.
const (
	ReminderPending   = "PENDING"
	ReminderDone      = "DONE"
	ReminderDismissed = "DISMISSED"
)

// Entry is a persisted, classified record of user content. Embedding is
// empty when no vector was available at persistence time; such entries are
// excluded from similarity search.
type Entry struct {
	ID        string
	UserID    string
	Content   string
	Intent    string
	Category  string
	Embedding []float32
	CreatedAt time.Time
}

// Reminder attaches a due date and status to an entry. Deleting the entry
// cascades to its reminders.
type Reminder struct {
	ID        string
	EntryID   string
	DueDate   time.Time
	Status    string
	CreatedAt time.Time
}

// ContextValue is one user-scoped key/value fact made available to the
// classifier as a context variable.
type ContextValue struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

// ScoredEntry is an Entry with a cosine similarity score attached.
type ScoredEntry struct {
	Entry
	Score float32
}
