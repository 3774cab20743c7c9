// Package session holds the process-local conversational state for each
// participant: the backend continuation token, the intervention turn counter,
// and the process-wide first-interaction-today set.
//
// All state is volatile by design. A process restart loses continuation
// tokens and intervention progress; the roster and the message log are the
// durable records. Because state mutations are read-then-write, the store
// also provides per-user mutual exclusion so concurrent webhook deliveries
// for the same user never interleave, while distinct users proceed in
// parallel.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// dateLayout is the day granularity used for the first-interaction-today set.
const dateLayout = "2006-01-02"

// Store is the in-memory session state store.
type Store struct {
	mu sync.Mutex

	userLocks     map[string]*sync.Mutex
	conversations map[string]string
	turns         map[string]int

	today     map[string]struct{}
	todayDate string

	loc *time.Location
	now func() time.Time
}

// NewStore creates a session store tracking "today" in the given timezone.
func NewStore(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		userLocks:     make(map[string]*sync.Mutex),
		conversations: make(map[string]string),
		turns:         make(map[string]int),
		today:         make(map[string]struct{}),
		loc:           loc,
		now:           time.Now,
	}
}

// SetClock overrides the store's time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Lock acquires the per-user mutex. Every routing pass for a user runs under
// this lock; locks for distinct users are independent.
func (s *Store) Lock(userID string) {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
}

// Unlock releases the per-user mutex acquired by Lock.
func (s *Store) Unlock(userID string) {
	s.mu.Lock()
	l, ok := s.userLocks[userID]
	s.mu.Unlock()
	if !ok {
		slog.Warn("session.Unlock: no lock registered for user", "userID", userID)
		return
	}
	l.Unlock()
}

// ConversationID returns the stored backend continuation token, if any.
func (s *Store) ConversationID(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.conversations[userID]
	return id, ok
}

// SetConversationID stores the backend continuation token. Empty values are
// ignored so a degraded backend reply never clobbers an existing token.
func (s *Store) SetConversationID(userID, conversationID string) {
	if conversationID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[userID] = conversationID
}

// InterventionTurn returns the scripted-intervention turn counter, if the
// user is in an active intervention.
func (s *Store) InterventionTurn(userID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn, ok := s.turns[userID]
	return turn, ok
}

// SetInterventionTurn sets the scripted-intervention turn counter.
func (s *Store) SetInterventionTurn(userID string, turn int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[userID] = turn
}

// ClearInterventionTurn removes the user from the active intervention.
func (s *Store) ClearInterventionTurn(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, userID)
}

// MarkInteractedToday marks the user as having interacted today and reports
// whether this was their first interaction of the day. The tracked set is
// rolled over first when the stored date differs from the current date in
// the store's timezone, so a read spanning a day boundary never sees stale
// membership.
func (s *Store) MarkInteractedToday(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := s.now().In(s.loc).Format(dateLayout)
	if date != s.todayDate {
		slog.Debug("session.MarkInteractedToday: rolling over daily set", "previous", s.todayDate, "current", date, "tracked", len(s.today))
		s.today = make(map[string]struct{})
		s.todayDate = date
	}

	if _, seen := s.today[userID]; seen {
		return false
	}
	s.today[userID] = struct{}{}
	return true
}

// Reset clears all per-user session state: continuation token, intervention
// turn, and today-marker. The per-user lock registration is kept.
func (s *Store) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
	delete(s.turns, userID)
	delete(s.today, userID)
	slog.Debug("session.Reset: cleared session state", "userID", userID)
}
