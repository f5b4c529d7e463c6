// Package session keeps per-session chat history. History is bounded and
// ordered; sessions are kept in memory only.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxTurns bounds a history when no limit is configured.
const DefaultMaxTurns = 100

// ChatTurn is one answered exchange. It is never mutated after creation.
type ChatTurn struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`

	// Reviews and Overview are the formatted review blocks and cluster
	// overview lines the answer was grounded on
	Reviews  []string `json:"reviews"`
	Overview []string `json:"overview"`

	// Found is the number of retrieved matches, including those without text
	Found int `json:"found"`

	AskedAt time.Time `json:"asked_at"`
}

// NewTurn creates a ChatTurn, copying the slices it is given.
func NewTurn(question, answer string, reviews, overview []string, found int) ChatTurn {
	return ChatTurn{
		ID:       uuid.New(),
		Question: question,
		Answer:   answer,
		Reviews:  append([]string(nil), reviews...),
		Overview: append([]string(nil), overview...),
		Found:    found,
		AskedAt:  time.Now(),
	}
}

// History is an append-only sequence of turns capped at a maximum size;
// the oldest turns are evicted first. It is safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	turns   []ChatTurn
	max     int
	evicted int
}

// NewHistory creates a history holding at most max turns.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultMaxTurns
	}
	return &History{max: max}
}

// Append adds a turn, evicting the oldest when the history is full.
func (h *History) Append(turn ChatTurn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, turn)
	if over := len(h.turns) - h.max; over > 0 {
		h.turns = append(h.turns[:0:0], h.turns[over:]...)
		h.evicted += over
	}
}

// Len returns the number of turns held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Evicted returns how many turns were dropped to respect the bound.
func (h *History) Evicted() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.evicted
}

// Latest returns the most recent turn.
func (h *History) Latest() (ChatTurn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.turns) == 0 {
		return ChatTurn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// Page returns up to limit turns newest-first, skipping offset turns.
func (h *History) Page(offset, limit int) []ChatTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(h.turns) {
		return []ChatTurn{}
	}
	end := min(offset+limit, len(h.turns))

	out := make([]ChatTurn, 0, end-offset)
	for i := len(h.turns) - 1 - offset; i >= len(h.turns)-end; i-- {
		out = append(out, h.turns[i])
	}
	return out
}

// All returns every turn newest-first.
func (h *History) All() []ChatTurn {
	return h.Page(0, h.Len())
}

// Session is one user's conversation.
type Session struct {
	ID        uuid.UUID `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	History   *History  `json:"-"`
}

// DefaultMaxSessions bounds a store when no limit is configured.
const DefaultMaxSessions = 1000

// Store manages sessions in memory. It holds at most maxSessions sessions;
// creating one more evicts the least recently used.
type Store struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]*storeEntry
	maxTurns    int
	maxSessions int
	clock       uint64
}

type storeEntry struct {
	session  *Session
	lastUsed uint64
}

// NewStore creates a store whose sessions keep at most maxTurns turns.
// A non-positive maxSessions means DefaultMaxSessions.
func NewStore(maxTurns, maxSessions int) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Store{
		sessions:    make(map[uuid.UUID]*storeEntry),
		maxTurns:    maxTurns,
		maxSessions: maxSessions,
	}
}

// Create starts a new empty session, evicting the least recently used
// sessions when the store is full.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		History:   NewHistory(s.maxTurns),
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock++
	s.sessions[sess.ID] = &storeEntry{session: sess, lastUsed: s.clock}
	s.evict()
	return sess
}

// Get looks up a session by its string id and marks it used.
func (s *Store) Get(id string) (*Session, bool) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[uid]
	if !ok {
		return nil, false
	}
	s.clock++
	e.lastUsed = s.clock
	return e.session, true
}

// Delete removes a session.
func (s *Store) Delete(id string) bool {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[uid]
	delete(s.sessions, uid)
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// evict drops least recently used sessions until at most maxSessions
// remain. Callers hold s.mu.
func (s *Store) evict() {
	for len(s.sessions) > s.maxSessions {
		var oldest *storeEntry
		for _, e := range s.sessions {
			if oldest == nil || e.lastUsed < oldest.lastUsed {
				oldest = e
			}
		}
		delete(s.sessions, oldest.session.ID)
	}
}
