package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/msalah0e/mindmap/internal/apperr"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]Document)}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := checkKey(collection, id); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, apperr.NotFound("%s/%s", collection, id)
	}
	return clone(doc), nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	if !ValidCollection(collection) {
		return nil, apperr.Validation("invalid collection %q", collection)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs[collection]))
	for _, doc := range m.docs[collection] {
		out = append(out, clone(doc))
	}
	return out, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data []byte) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	if !json.Valid(data) {
		return apperr.Validation("document %s is not valid JSON", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]Document)
		m.docs[collection] = coll
	}
	coll[id] = Document{ID: id, Data: append(json.RawMessage(nil), data...), UpdatedAt: time.Now()}
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[collection], id)
	if len(m.docs[collection]) == 0 {
		delete(m.docs, collection)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func clone(d Document) Document {
	d.Data = append(json.RawMessage(nil), d.Data...)
	return d
}
