package cache

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process. The janitor is disabled: an expired
// entry stays in memory until the next Get of the same key removes it, or
// until Clear.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		m.c.Delete(key)
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return b, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.c.Flush()
	return nil
}

// Keys lists unexpired keys, sorted.
func (m *MemoryStore) Keys(context.Context) ([]string, error) {
	items := m.c.Items()
	out := make([]string, 0, len(items))
	for k := range items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// stored counts entries held in memory, expired or not.
func (m *MemoryStore) stored() int {
	return m.c.ItemCount()
}
