package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is a thread-safe in-memory Store, keyed by collection then id.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
	}
}

// Get returns a copy of the document, or ErrDocumentNotFound.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return normalizeDocument(doc)
}

// Set replaces the document stored under id.
func (s *MemoryStore) Set(_ context.Context, collection, id string, doc Document) error {
	n, err := normalizeDocument(doc)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]Document)
	}
	s.collections[collection][id] = n
	return nil
}

// Update merges patch into the top level of an existing document.
func (s *MemoryStore) Update(_ context.Context, collection, id string, patch Document) error {
	n, err := normalizeDocument(patch)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrDocumentNotFound
	}
	merged := make(Document, len(doc)+len(n))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range n {
		merged[k] = v
	}
	s.collections[collection][id] = merged
	return nil
}

// Query returns copies of the documents matching every filter.
func (s *MemoryStore) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	wants := make([]any, len(q.Filters))
	for i, f := range q.Filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		wants[i] = v
	}

	s.mu.RLock()
	var result []Document
	for _, doc := range s.collections[collection] {
		if matches(doc, q.Filters, wants) {
			result = append(result, doc)
		}
	}
	s.mu.RUnlock()

	if q.OrderBy != nil {
		field, desc := q.OrderBy.Field, q.OrderBy.Desc
		sort.SliceStable(result, func(i, j int) bool {
			if desc {
				return less(result[j][field], result[i][field])
			}
			return less(result[i][field], result[j][field])
		})
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}

	out := make([]Document, 0, len(result))
	for _, doc := range result {
		c, err := normalizeDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func matches(doc Document, filters []Filter, wants []any) bool {
	for i, f := range filters {
		if !reflect.DeepEqual(doc[f.Field], wants[i]) {
			return false
		}
	}
	return true
}

// less orders numbers before strings; nil sorts first.
func less(a, b any) bool {
	switch av := a.(type) {
	case json.Number:
		if bv, ok := b.(json.Number); ok {
			return lessNumber(av, bv)
		}
		return b != nil
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
		return false
	case nil:
		return b != nil
	}
	return false
}
