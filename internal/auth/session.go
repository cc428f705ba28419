// Package auth supplies the authenticated owner identity that stores and handlers are scoped to.
package auth

import "sync"

// Session holds the currently signed-in owner. The zero value is signed out.
type Session struct {
	mu    sync.RWMutex
	owner string
}

func NewSession(owner string) *Session {
	return &Session{owner: owner}
}

// Owner reports the signed-in owner, or false when nobody is signed in.
func (s *Session) Owner() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner, s.owner != ""
}

func (s *Session) SignIn(owner string) {
	s.mu.Lock()
	s.owner = owner
	s.mu.Unlock()
}

func (s *Session) SignOut() {
	s.mu.Lock()
	s.owner = ""
	s.mu.Unlock()
}
