package httpserver

import (
	"sync"

	"servimap/feed-service/internal/feed"
)

// Sessions maps each user to their feed controller. One controller per
// user: beginning a new load cycle supersedes the previous one, matching
// the single home feed the mobile client shows.
type Sessions struct {
	mu     sync.Mutex
	byUser map[string]*feed.Controller
	build  func() *feed.Controller
}

// NewSessions returns a registry that creates controllers with build.
func NewSessions(build func() *feed.Controller) *Sessions {
	return &Sessions{byUser: make(map[string]*feed.Controller), build: build}
}

// For returns the user's controller, creating it on first use.
func (s *Sessions) For(userID string) *feed.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl, ok := s.byUser[userID]
	if !ok {
		ctrl = s.build()
		s.byUser[userID] = ctrl
	}
	return ctrl
}

// Len reports how many sessions exist.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}
