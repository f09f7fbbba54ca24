package conversation

import (
	"sync"

	"support-agent/internal/domain"
)

// DefaultMaxTurns keeps five user/assistant exchanges.
const DefaultMaxTurns = 10

type conversation struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// Store keeps conversations in memory for the lifetime of the process.
// Each conversation has its own lock; the id map has a separate one.
type Store struct {
	maxTurns int

	mu            sync.Mutex
	conversations map[string]*conversation
}

func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns:      maxTurns,
		conversations: make(map[string]*conversation),
	}
}

func (s *Store) lookup(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		c = &conversation{}
		s.conversations[id] = c
	}
	return c
}

// GetOrCreate returns a snapshot of the conversation, creating it on first use.
func (s *Store) GetOrCreate(id string) domain.Conversation {
	c := s.lookup(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Conversation{ID: id, Turns: cloneTurns(c.turns)}
}

// AppendTurn appends one turn and drops the oldest turns beyond the cap.
func (s *Store) AppendTurn(id string, turn domain.Turn) {
	c := s.lookup(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = s.trim(append(c.turns, turn))
}

// Clear empties the conversation but keeps its id registered.
func (s *Store) Clear(id string) {
	c := s.lookup(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// Begin locks the conversation for a whole chat turn. Callers must call Done.
func (s *Store) Begin(id string) *Session {
	c := s.lookup(id)
	c.mu.Lock()
	return &Session{store: s, conv: c}
}

func (s *Store) trim(turns []domain.Turn) []domain.Turn {
	if len(turns) <= s.maxTurns {
		return turns
	}
	out := make([]domain.Turn, s.maxTurns)
	copy(out, turns[len(turns)-s.maxTurns:])
	return out
}

// Session is exclusive access to one conversation.
type Session struct {
	store *Store
	conv  *conversation
	done  bool
}

// History returns up to n of the most recent turns, oldest first. n <= 0 returns all.
func (s *Session) History(n int) []domain.Turn {
	turns := s.conv.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return cloneTurns(turns)
}

func (s *Session) Append(turns ...domain.Turn) {
	s.conv.turns = s.store.trim(append(s.conv.turns, turns...))
}

// Done releases the conversation. Calling it more than once is a no-op.
func (s *Session) Done() {
	if s.done {
		return
	}
	s.done = true
	s.conv.mu.Unlock()
}

func cloneTurns(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}
