package store

import (
	"context"
	"sync"

	"doccollab/internal/models"
)

// MemoryStore keeps documents in process memory; contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]string
	comments map[string][]models.Comment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]string),
		comments: make(map[string][]models.Comment),
	}
}

func (s *MemoryStore) Load(_ context.Context, documentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[documentID]
	if !ok {
		return "", models.ErrDocumentNotFound
	}
	return content, nil
}

func (s *MemoryStore) SaveContent(_ context.Context, documentID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[documentID] = content
	return nil
}

func (s *MemoryStore) AppendComment(_ context.Context, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.DocumentID] = append(s.comments[c.DocumentID], c)
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, documentID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Comment, len(s.comments[documentID]))
	copy(out, s.comments[documentID])
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
