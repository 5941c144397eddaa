package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// In-process cache. Each namespace gets its own expiring LRU, so a long grading run that fills the score namespace doesn't evict resolved handles.
type MemCacheStore struct {
	capacity   int
	defaultTTL time.Duration
	ttls       map[string]time.Duration

	lk     sync.Mutex
	spaces map[string]*expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

// capacity is per namespace. A zero ttl means entries only leave the cache by LRU eviction.
func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		capacity:   capacity,
		defaultTTL: ttl,
		ttls:       map[string]time.Duration{},
		spaces:     map[string]*expirable.LRU[string, string]{},
	}
}

// Overrides the ttl for one namespace. Only affects namespaces not yet written to.
func (s *MemCacheStore) WithNamespaceTTL(name string, ttl time.Duration) *MemCacheStore {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.ttls[name] = ttl
	return s
}

// Returns nil for a namespace that has never been written, unless create is set.
func (s *MemCacheStore) space(name string, create bool) *expirable.LRU[string, string] {
	s.lk.Lock()
	defer s.lk.Unlock()
	lru, ok := s.spaces[name]
	if ok || !create {
		return lru
	}
	ttl, ok := s.ttls[name]
	if !ok {
		ttl = s.defaultTTL
	}
	lru = expirable.NewLRU[string, string](s.capacity, nil, ttl)
	s.spaces[name] = lru
	return lru
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	lru := s.space(name, false)
	if lru == nil {
		observeLookup("mem", name, false)
		return "", nil
	}
	v, ok := lru.Get(key)
	observeLookup("mem", name, ok)
	return v, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.space(name, true).Add(key, val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	if lru := s.space(name, false); lru != nil {
		lru.Remove(key)
	}
	return nil
}

// Number of live entries in one namespace.
func (s *MemCacheStore) Len(name string) int {
	lru := s.space(name, false)
	if lru == nil {
		return 0
	}
	return lru.Len()
}
