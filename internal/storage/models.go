package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction statuses recorded by the pipeline.
const (
	StatusAnswered    = "answered"
	StatusSmalltalk   = "smalltalk"
	StatusNoEntities  = "no_entities"
	StatusNoResults   = "no_results"
	StatusSearchError = "search_error"
	StatusChatError   = "chat_error"
)

// Interaction is the audit record of one pipeline turn: what the user
// asked, what was extracted and searched, and how the turn ended. This is
// an operability log only — conversational state lives in memory.
type Interaction struct {
	ID          string
	CreatedAt   time.Time
	SessionID   string
	UserQuery   string
	Company     string
	Keywords    string // JSON array stored as text
	SearchQuery string
	Sources     string // JSON array stored as text
	Answer      string
	Status      string
}
