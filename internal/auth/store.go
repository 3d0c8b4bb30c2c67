package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const storeFilename = "tokens.json"

// Store keeps the GitHub token of each user who signed in, and persists them in tokens.json in DatabasePath.
type Store struct {
	DatabasePath string
	// Default is used for users who haven't signed in. May be nil.
	Default Provider
	tokens  map[string]string
	lock    sync.RWMutex
}

func NewStore(databasePath string, defaultProvider Provider) *Store {
	return &Store{
		DatabasePath: databasePath,
		Default:      defaultProvider,
		tokens:       make(map[string]string),
	}
}

// Load reads the stored tokens from disk.
func (s *Store) Load() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	f, err := os.Open(filepath.Join(s.DatabasePath, storeFilename))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()
	tokens := make(map[string]string)
	if err = json.NewDecoder(f).Decode(&tokens); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	s.tokens = tokens
	return nil
}

func (s *Store) save() error {
	f, err := os.OpenFile(filepath.Join(s.DatabasePath, storeFilename), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s.tokens)
}

// Len returns the number of users in the Store.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.tokens)
}

// Set stores the token for the user.
// If the store can't be saved to disk, the token is not stored and Set returns an error.
func (s *Store) Set(user, token string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.tokens == nil {
		s.tokens = make(map[string]string)
	}
	current, ok := s.tokens[user]
	if ok && current == token {
		return nil
	}
	s.tokens[user] = token
	if err := s.save(); err != nil {
		// keep memory in line with what's on disk
		if ok {
			s.tokens[user] = current
		} else {
			delete(s.tokens, user)
		}
		return err
	}
	return nil
}

// Delete removes the user's token. It returns false if the user had no token.
// If the store can't be saved to disk, the token is kept.
func (s *Store) Delete(user string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	current, ok := s.tokens[user]
	if !ok {
		return false, nil
	}
	delete(s.tokens, user)
	if err := s.save(); err != nil {
		s.tokens[user] = current
		return false, err
	}
	return true, nil
}

// SignedIn returns true if the user has a token of their own.
func (s *Store) SignedIn(user string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.tokens[user]
	return ok
}

// For returns a Provider for the user's token. If the user hasn't signed in, the Store's Default is used.
func (s *Store) For(user string) Provider {
	return userToken{store: s, user: user}
}

type userToken struct {
	store *Store
	user  string
}

func (u userToken) Token() (string, bool) {
	u.store.lock.RLock()
	token, ok := u.store.tokens[u.user]
	u.store.lock.RUnlock()
	if ok {
		return token, true
	}
	if u.store.Default == nil {
		return "", false
	}
	return u.store.Default.Token()
}
