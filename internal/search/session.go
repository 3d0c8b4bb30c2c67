package search

import (
	"context"
	"sync"
)

// State is the state of a session.
type State int

const (
	Idle State = iota
	Loading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	default:
		return "unknown"
	}
}

// Sessions runs at most one search per session key. Starting a new search for a key cancels the one in flight:
// the superseded search returns ErrSuperseded and its result is discarded.
//
// Sessions only tracks searches in flight, so its size is bounded by the number of concurrent searches.
type Sessions struct {
	lock       sync.Mutex
	generation uint64
	inflight   map[string]inflight
}

type inflight struct {
	generation uint64
	cancel     context.CancelCauseFunc
}

// Run calls f for the session key. If key is empty, f is called without session tracking.
// If f fails, the result is discarded.
func (s *Sessions) Run(ctx context.Context, key string, f func(context.Context) (Result, error)) (Result, error) {
	if key == "" {
		return discardOnError(f(ctx))
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	generation := s.start(key, cancel)
	result, err := f(ctx)
	if !s.finish(key, generation) {
		return Result{}, ErrSuperseded
	}
	return discardOnError(result, err)
}

// State returns Loading if a search is in flight for key.
func (s *Sessions) State(key string) State {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.inflight[key]; ok {
		return Loading
	}
	return Idle
}

func (s *Sessions) start(key string, cancel context.CancelCauseFunc) uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[string]inflight)
	}
	if current, ok := s.inflight[key]; ok {
		current.cancel(ErrSuperseded)
	}
	s.generation++
	s.inflight[key] = inflight{generation: s.generation, cancel: cancel}
	return s.generation
}

// finish removes the search from the session and reports whether it was still the current one.
func (s *Sessions) finish(key string, generation uint64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	current, ok := s.inflight[key]
	if !ok || current.generation != generation {
		return false
	}
	delete(s.inflight, key)
	return true
}

func discardOnError(result Result, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
