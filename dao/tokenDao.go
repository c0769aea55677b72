package dao

import (
	"sync"

	"SmartHome.dashboard/models"
)

// TokenStore persists the Netatmo OAuth token (access_token.json).
type TokenStore struct {
	path string
	mu   sync.Mutex
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

func (s *TokenStore) Load() (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tok models.Token
	if err := readJSON(s.path, &tok); err != nil {
		return models.Token{}, err
	}
	return tok, nil
}

func (s *TokenStore) Save(tok models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.path, tok)
}
