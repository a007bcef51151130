package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/sealify/docseal/verify"
)

// Sessions keeps recent verification results so the UI can fetch a verdict
// again without re-uploading the document. Purely in-memory; a restart
// forgets them.
type Sessions struct {
	mu      sync.RWMutex
	results map[string]*verify.Result
}

func NewSessions() *Sessions {
	return &Sessions{results: make(map[string]*verify.Result)}
}

func (s *Sessions) Save(res *verify.Result) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.results[id] = res
	return id
}

func (s *Sessions) Get(id string) (*verify.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return res, nil
}
