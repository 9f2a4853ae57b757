package memory

import (
	"context"
	"sync"

	"mcq-queue-service/internal/domain"
)

// DocumentStore is an in-memory implementation of app.DocumentBackend.
// Nothing survives a restart; it backs tests and throwaway runs.
type DocumentStore struct {
	mu      sync.RWMutex
	data    []byte
	saves   int
	loadErr error
	saveErr error
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

// NewDocumentStoreWith seeds the store with raw document bytes.
func NewDocumentStoreWith(data []byte) *DocumentStore {
	return &DocumentStore{data: append([]byte(nil), data...)}
}

func (s *DocumentStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, domain.ErrDocumentNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *DocumentStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	s.saves++
	return nil
}

// FailLoads makes every Load return err until cleared with nil.
func (s *DocumentStore) FailLoads(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// FailSaves makes every Save return err until cleared with nil.
func (s *DocumentStore) FailSaves(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

// Bytes returns the last saved document.
func (s *DocumentStore) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...)
}

// Saves counts successful writes.
func (s *DocumentStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
