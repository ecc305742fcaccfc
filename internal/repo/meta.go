package meta

import (
	"context"
	"sync"

	"github.com/sir_venger/resumable/internal/models"
)

// MemoryStore хранит журнал загрузок только в оперативной памяти; удобно для тестов.
type MemoryStore struct {
	mu      sync.RWMutex
	uploads map[string]models.Upload
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{uploads: map[string]models.Upload{}}
}

// Get возвращает запись по идентификатору или ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (models.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.uploads[id]
	if !ok {
		return models.Upload{}, models.ErrNotFound
	}
	return up, nil
}

// Save записывает (или обновляет) запись целиком.
func (s *MemoryStore) Save(_ context.Context, up models.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[up.Identifier] = up
	return nil
}

// Close ничего не делает.
func (s *MemoryStore) Close() error { return nil }
