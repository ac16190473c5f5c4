// Package session holds per-conversation state. A Session is an append-only
// list of turns, created per chat session and passed by reference into the
// pipeline; nothing here survives a process restart.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Turns are immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an append-only conversation transcript. Safe for concurrent
// use: the HTTP server may receive turns for different sessions in parallel.
type Session struct {
	id string

	mu    sync.RWMutex
	turns []Turn
}

// New creates an empty session with a fresh ID.
func New() *Session {
	return &Session{id: uuid.NewString()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Append records a turn at the end of the transcript.
func (s *Session) Append(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text, CreatedAt: time.Now().UTC()})
}

// Turns returns a copy of the full transcript.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Recent returns a copy of the last n turns; n <= 0 returns nil. Older
// turns are simply not included: prompt size is bounded by FIFO truncation,
// no summarization.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Store keeps live sessions by ID so multiple concurrent conversations can
// run against one server process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers and returns a new session.
func (st *Store) Create() *Session {
	s := New()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.id] = s
	return s
}

// Get returns the session with the given ID, if it exists.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// GetOrCreate returns the session with the given ID, creating a new one
// when id is empty or unknown.
func (st *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s
		}
	}
	return st.Create()
}
