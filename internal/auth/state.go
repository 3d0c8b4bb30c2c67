package auth

import (
	"crypto/rand"
	"sync"
	"time"
)

// DefaultStateTTL is how long a user has to complete the GitHub sign-in.
const DefaultStateTTL = 10 * time.Minute

// States tracks sign-ins in progress. Each sign-in gets a random state, which GitHub passes back to the callback,
// so the callback knows which user signed in. Whoever presents a state gets signed in as its user,
// so states must not be guessable.
type States struct {
	// TTL is the time a state remains valid. Defaults to DefaultStateTTL.
	TTL     time.Duration
	now     func() time.Time
	lock    sync.Mutex
	pending map[string]pendingState
}

type pendingState struct {
	user    string
	expires time.Time
}

// New starts a sign-in for the user and returns its state.
func (s *States) New(user string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	now := s.timeNow()
	s.purge(now)
	if s.pending == nil {
		s.pending = make(map[string]pendingState)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	state := rand.Text()
	s.pending[state] = pendingState{user: user, expires: now.Add(ttl)}
	return state
}

// Resolve returns the user who started the sign-in with the given state. A state can only be resolved once.
func (s *States) Resolve(state string) (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)
	if !s.timeNow().Before(p.expires) {
		return "", false
	}
	return p.user, true
}

// Len returns the number of sign-ins in progress, including expired ones that haven't been purged yet.
func (s *States) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.pending)
}

func (s *States) purge(now time.Time) {
	for state, p := range s.pending {
		if !now.Before(p.expires) {
			delete(s.pending, state)
		}
	}
}

func (s *States) timeNow() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
