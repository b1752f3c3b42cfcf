package state

import "sync"

// Session is the local user's sign-in state.
type Session struct {
	mu     sync.RWMutex
	userID string
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Begin(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *Session) End() {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
}

// UserID returns the local user id and whether a session is active.
func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userID, s.userID != ""
}

func (s *Session) Active() bool {
	_, ok := s.UserID()
	return ok
}
