package docstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a thread-safe in-memory Store. It backs the test suites and works
// as an ephemeral store for embedded use.
type Memory struct {
	mu sync.RWMutex
	// collection -> id -> fields
	data map[string]map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]map[string]any)}
}

func (m *Memory) Query(_ context.Context, collection string, filters []Filter, order *Order) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Document
	for id, fields := range m.data[collection] {
		if !matches(fields, filters) {
			continue
		}
		docs = append(docs, Document{ID: id, Fields: maps.Clone(fields)})
	}

	if order != nil {
		sort.SliceStable(docs, func(i, j int) bool {
			c := compareValues(docs[i].Fields[order.Field], docs[j].Fields[order.Field])
			if order.Desc {
				return c > 0
			}
			return c < 0
		})
	} else {
		// Deterministic fallback so repeated queries agree.
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}
	return docs, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: maps.Clone(fields)}, nil
}

func (m *Memory) Add(_ context.Context, collection string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]map[string]any)
	}
	m.data[collection][id] = maps.Clone(fields)
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(collection, id, fields)
}

func (m *Memory) updateLocked(collection, id string, fields map[string]any) error {
	doc, ok := m.data[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
	return nil
}

func (m *Memory) Batch() Batch {
	return &memoryBatch{store: m}
}

type memoryBatch struct {
	store *Memory
	ops   []batchOp
}

func (b *memoryBatch) Update(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: fields})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{delete: true, collection: collection, id: id})
}

// Commit validates every op before applying any, so a failed batch leaves the
// store untouched.
func (b *memoryBatch) Commit(_ context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	for _, op := range b.ops {
		if op.delete {
			continue
		}
		if _, ok := b.store.data[op.collection][op.id]; !ok {
			return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, ErrNotFound)
		}
	}

	for _, op := range b.ops {
		if op.delete {
			delete(b.store.data[op.collection], op.id)
			continue
		}
		if err := b.store.updateLocked(op.collection, op.id, op.fields); err != nil {
			return err
		}
	}
	return nil
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if compareValues(fields[f.Field], f.Value) != 0 {
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case av:
				return 1
			}
			return -1
		}
	case int:
		if bv, ok := b.(int); ok {
			return av - bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	if b == nil {
		return 1
	}
	// Mismatched types never compare equal.
	return -1
}
