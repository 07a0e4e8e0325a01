package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"nutridash/pkg/platform/sentinel"
)

// InMemory keeps collections in process, in insertion order. It backs local
// development and handler tests.
type InMemory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	docs  map[string]Fields
}

func NewInMemory() *InMemory {
	return &InMemory{collections: make(map[string]*memCollection)}
}

func (s *InMemory) List(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return []Document{}, nil
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Document{ID: id, Fields: c.docs[id].Clone()})
	}
	return out, nil
}

func (s *InMemory) Create(_ context.Context, collection string, fields Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		c = &memCollection{docs: make(map[string]Fields)}
		s.collections[collection] = c
	}
	id := uuid.NewString()
	c.order = append(c.order, id)
	c.docs[id] = fields.Clone()
	return id, nil
}

func (s *InMemory) Update(_ context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	c.docs[id] = fields.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("delete %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("delete %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(existing string) bool { return existing == id })
	return nil
}
