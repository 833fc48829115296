// Package memory holds tabular rows and blobs in process memory for local runs
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"
)

// BlobStore keeps blobs keyed by name. Every write is also kept in order so
// repeated names stay visible.
type BlobStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes []string
}

// NewBlobStore creates an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// WriteBlob stores a copy of content under name.
func (s *BlobStore) WriteBlob(_ context.Context, name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), content...)
	s.writes = append(s.writes, name)
	return nil
}

// Get returns the latest content written under name.
func (s *BlobStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// Names returns the distinct blob names in sorted order.
func (s *BlobStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for name := range s.data {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Writes returns every write in call order.
func (s *BlobStore) Writes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.writes...)
}
