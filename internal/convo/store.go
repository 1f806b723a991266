// Package convo holds the in-memory conversation state for the secretary
// service. Conversations are process-lifetime only: there is no persistence,
// and a restart loses all transcripts. The id space is opaque: callers either
// present an id they were handed earlier or get a fresh one minted.
package convo

import (
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Role values for transcript turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single entry in a transcript. Turns are immutable once appended.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered, append-only transcript guarded by its own
// mutex. Concurrent requests against the same conversation id serialize on
// appends but never block requests for other conversations.
type Conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// Append adds a turn to the end of the transcript.
func (c *Conversation) Append(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
}

// Snapshot returns a copy of the transcript at this instant. The copy is
// safe to read while other requests keep appending.
func (c *Conversation) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the current number of turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// DefaultCapacity bounds how many conversations are retained before the
// least recently used one is evicted.
const DefaultCapacity = 1024

// Store maps conversation ids to transcripts with an LRU capacity bound.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Conversation]
}

// NewStore creates a store retaining at most capacity conversations.
// A capacity <= 0 falls back to DefaultCapacity.
func NewStore(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.NewWithEvict(capacity, func(id string, _ *Conversation) {
		log.Debug().Str("conversation_id", id).Msg("conversation evicted")
	})
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

// GetOrCreate returns the conversation for id, minting a fresh random id and
// empty transcript when id is empty or unknown. The returned id is always
// the one the conversation is stored under.
func (s *Store) GetOrCreate(id string) (string, *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if conv, ok := s.cache.Get(id); ok {
		return id, conv
	}
	conv := &Conversation{}
	s.cache.Add(id, conv)
	return id, conv
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
