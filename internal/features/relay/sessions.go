package relay

import (
	"sync"
	"time"
)

type SessionKind int

const (
	SessionEdit SessionKind = iota + 1
	SessionReply
)

func (k SessionKind) String() string {
	switch k {
	case SessionEdit:
		return "edit"
	case SessionReply:
		return "reply"
	default:
		return "none"
	}
}

// Session is a pending two-step interaction waiting for the user's next message.
type Session struct {
	Kind      SessionKind
	MessageID int64
	ExpiresAt time.Time
}

// sessions holds at most one pending session per user. Starting a new one
// replaces the previous.
type sessions struct {
	mu   sync.Mutex
	ttl  time.Duration
	byID map[int64]Session
}

func newSessions(ttl time.Duration) *sessions {
	return &sessions{ttl: ttl, byID: make(map[int64]Session)}
}

func (s *sessions) begin(userID int64, kind SessionKind, messageID int64, now time.Time) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{Kind: kind, MessageID: messageID, ExpiresAt: now.Add(s.ttl)}
	s.byID[userID] = sess
	return sess
}

func (s *sessions) get(userID int64, now time.Time) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[userID]
	if !ok {
		return Session{}, false
	}
	if !now.Before(sess.ExpiresAt) {
		delete(s.byID, userID)
		return Session{}, false
	}
	return sess, true
}

// clear removes the session only if it is still the one the caller saw.
func (s *sessions) clear(userID int64, seen Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.byID[userID]; ok && cur == seen {
		delete(s.byID, userID)
	}
}

func (s *sessions) cancel(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byID[userID]
	delete(s.byID, userID)
	return ok
}

func (s *sessions) prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.byID {
		if !now.Before(sess.ExpiresAt) {
			delete(s.byID, id)
			removed++
		}
	}
	return removed
}
