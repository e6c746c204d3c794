package rescache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps caches in process memory.
type MemoryStorage struct {
	mu     sync.Mutex
	seq    int64
	caches map[string]*memoryCache
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*memoryCache)}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		c = &memoryCache{storage: s, name: name, entries: make(map[string]memoryEntry)}
		s.caches[name] = c
	}
	return c, nil
}

func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.caches))
	for n := range s.caches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		return false, nil
	}
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.deleted = true
	c.mu.Unlock()
	delete(s.caches, name)
	return true, nil
}

func (s *MemoryStorage) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

type memoryEntry struct {
	seq   int64
	entry Entry
}

type memoryCache struct {
	storage *MemoryStorage
	name    string

	mu      sync.Mutex
	entries map[string]memoryEntry
	deleted bool
}

func (c *memoryCache) Name() string { return c.name }

func (c *memoryCache) Match(_ context.Context, url string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	me, ok := c.entries[url]
	if !ok {
		return nil, nil
	}
	e := me.entry
	e.Header = e.Header.Clone()
	e.Body = append([]byte(nil), e.Body...)
	return &e, nil
}

func (c *memoryCache) Put(_ context.Context, entry *Entry) error {
	seq := c.storage.nextSeq()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return ErrNoCache
	}
	e := *entry
	e.Header = entry.Header.Clone()
	e.Body = append([]byte(nil), entry.Body...)
	c.entries[entry.URL] = memoryEntry{seq: seq, entry: e}
	return nil
}

func (c *memoryCache) Delete(_ context.Context, url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	delete(c.entries, url)
	return ok, nil
}

func (c *memoryCache) Keys(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	type kv struct {
		url string
		seq int64
	}
	all := make([]kv, 0, len(c.entries))
	for u, me := range c.entries {
		all = append(all, kv{u, me.seq})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	keys := make([]string, len(all))
	for i, e := range all {
		keys[i] = e.url
	}
	return keys, nil
}

func (c *memoryCache) Len(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}
