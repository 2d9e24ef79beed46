// Package session holds in-progress interview sessions in a bounded,
// idle-expiring store.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonathan/speaking-coach/internal/types"
)

// State is the interview progress marker.
type State string

// State constants
const (
	StateAwaitingFirstQuestion State = "awaiting_first_question"
	StateAwaitingAnswer        State = "awaiting_answer"
	StateFinished              State = "finished"
)

// Session is the mutable record of one interview. Callers must hold the
// session lock while reading or changing its fields.
type Session struct {
	mu sync.Mutex

	ID     string
	Role   string
	UserID string

	// Turns[0] is the only system turn. After the first user turn, user and
	// assistant turns strictly alternate.
	Turns          []types.Turn
	QuestionsAsked int
	State          State

	// Pending is set when the last user turn has no model reply yet because
	// generation failed.
	Pending bool

	CreatedAt time.Time
	UpdatedAt time.Time

	removed atomic.Bool
}

// Lock acquires the session lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a turn and bumps UpdatedAt.
func (s *Session) Append(role types.Role, text string) {
	s.Turns = append(s.Turns, types.Turn{Role: role, Text: text})
	s.UpdatedAt = time.Now().UTC()
}

// ReplaceSystem swaps the leading system turn for text. Repeated calls with
// the same text leave the session unchanged.
func (s *Session) ReplaceSystem(text string) {
	if len(s.Turns) > 0 && s.Turns[0].Role == types.RoleSystem {
		s.Turns[0].Text = text
	} else {
		s.Turns = append([]types.Turn{{Role: types.RoleSystem, Text: text}}, s.Turns...)
	}
	s.UpdatedAt = time.Now().UTC()
}

// LastTurn returns the most recent turn, if any.
func (s *Session) LastTurn() (types.Turn, bool) {
	if len(s.Turns) == 0 {
		return types.Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// UserAnswers returns the user turns after the opening seed, in order.
func (s *Session) UserAnswers() []string {
	var answers []string
	seen := 0
	for _, t := range s.Turns {
		if t.Role != types.RoleUser {
			continue
		}
		seen++
		if seen == 1 {
			continue
		}
		answers = append(answers, t.Text)
	}
	return answers
}

// Store is a bounded set of sessions with an idle TTL. Reads through Get
// refresh the idle timer.
type Store struct {
	// mu orders idle-timer refreshes against Delete so a refresh never
	// re-adds a deleted session.
	mu      sync.Mutex
	cache   *expirable.LRU[string, *Session]
	onEvict func(*Session)
}

// NewStore creates a store holding at most maxSessions sessions, each kept
// for ttl after its last access. onEvict, when non-nil, is called for
// sessions dropped by expiry or capacity, not for explicit Delete calls.
func NewStore(maxSessions int, ttl time.Duration, onEvict func(*Session)) *Store {
	st := &Store{onEvict: onEvict}
	st.cache = expirable.NewLRU[string, *Session](maxSessions, st.evicted, ttl)
	return st
}

func (st *Store) evicted(_ string, s *Session) {
	if s.removed.Load() || st.onEvict == nil {
		return
	}
	st.onEvict(s)
}

// Create registers a new session with a fresh id.
func (st *Store) Create(role, userID string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		Role:      role,
		UserID:    userID,
		State:     StateAwaitingFirstQuestion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.cache.Add(s.ID, s)
	return s
}

// Get returns the session for id and refreshes its idle timer.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.cache.Peek(id)
	if !ok || s.removed.Load() {
		return nil, &types.SessionNotFoundError{ID: id}
	}
	st.cache.Add(id, s)
	return s, nil
}

// Touch refreshes the idle timer of a session that is still stored.
func (st *Store) Touch(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s.removed.Load() {
		return
	}
	if cur, ok := st.cache.Peek(s.ID); ok && cur == s {
		st.cache.Add(s.ID, s)
	}
}

// Delete removes a session immediately. Unknown ids are ignored.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.cache.Peek(id); ok {
		s.removed.Store(true)
	}
	st.cache.Remove(id)
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (st *Store) Len() int {
	return st.cache.Len()
}
