package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store implementation. It is the default for
// tests and local runs without Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]*Item // pk -> sk -> item
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]map[string]*Item)}
}

func (s *MemoryStore) Get(ctx context.Context, pk, sk string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[pk][sk]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

func (s *MemoryStore) Query(ctx context.Context, pk, skPrefix string) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Item
	for sk, item := range s.items[pk] {
		if strings.HasPrefix(sk, skPrefix) {
			out = append(out, copyItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SK < out[j].SK })
	return out, nil
}

func (s *MemoryStore) QueryIndex(ctx context.Context, index Index, key string) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Item
	for _, partition := range s.items {
		for _, item := range partition {
			if indexKey(item, index) == key {
				out = append(out, copyItem(item))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return indexSort(out[i], index) < indexSort(out[j], index)
	})
	return out, nil
}

func (s *MemoryStore) ConditionalUpdate(ctx context.Context, pk, sk string, upd Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[pk][sk]
	if !ok {
		return ErrNotFound
	}

	for k, v := range upd.Set {
		item.Attrs[k] = v
	}
	if upd.IndexAKey != nil {
		item.IndexAKey = *upd.IndexAKey
	}
	if upd.IndexASort != nil {
		item.IndexASort = *upd.IndexASort
	}
	if upd.IndexBKey != nil {
		item.IndexBKey = *upd.IndexBKey
	}
	if upd.IndexBSort != nil {
		item.IndexBSort = *upd.IndexBSort
	}
	return nil
}

func (s *MemoryStore) Put(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items[item.PK] == nil {
		s.items[item.PK] = make(map[string]*Item)
	}
	s.items[item.PK][item.SK] = copyItem(item)
	return nil
}

func indexKey(item *Item, index Index) string {
	if index == IndexFlightStatus {
		return item.IndexAKey
	}
	return item.IndexBKey
}

func indexSort(item *Item, index Index) string {
	if index == IndexFlightStatus {
		return item.IndexASort
	}
	return item.IndexBSort
}

func copyItem(item *Item) *Item {
	out := *item
	out.Attrs = copyAttrs(item.Attrs)
	return &out
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch t := v.(type) {
		case map[string]any:
			out[k] = copyAttrs(t)
		case []any:
			cp := make([]any, len(t))
			for i, e := range t {
				if m, ok := e.(map[string]any); ok {
					cp[i] = copyAttrs(m)
				} else {
					cp[i] = e
				}
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
