// Package kv defines the L2 networked store contract used by
// IndexedCacheFacade, and an in-memory implementation suitable for single
// process deployments and tests.
package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Store abstracts the L2 distributed tier (Redis, Memcached, or an
// Encore-managed KV service). The facade never assumes a concrete
// backend; it only needs the key operations below (DeleteKeys removes an
// arbitrary list of keys in one call), plus IncrBy for quotas and the set
// operations for namespace indexes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteKeys(ctx context.Context, keys []string) error

	// IncrBy atomically adds delta to the integer stored at key (treating
	// a missing key as 0) and returns the new value. Required by
	// QuotaEngine's consume-then-compensate semantics.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// SAdd/SMembers/SRem back NamespaceIndex membership.
	SAdd(ctx context.Context, set, member string) error
	SMembers(ctx context.Context, set string) ([]string, error)
	SRem(ctx context.Context, set, member string) error
}

type item struct {
	value     []byte
	expiresAt time.Time // zero means never
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// InMemoryStore is a Store backed by a guarded map, standing in for a
// networked L2 in tests and in single-node deployments where a separate
// L2 process would be pure overhead.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]item
	sets  map[string]map[string]struct{}
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[string]item),
		sets:  make(map[string]map[string]struct{}),
	}
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if it.expired(time.Now()) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, true, nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.items[key] = item{value: stored, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) DeleteKeys(_ context.Context, keys []string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.items, k)
	}
	s.mu.Unlock()
	return nil
}

// IncrBy adds delta to the counter at key, creating it at 0 first if
// absent, and resets its TTL to ttl (when ttl > 0) on every call so
// calendar-window counters expire a fixed interval past last use.
func (s *InMemoryStore) IncrBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := int64(0)
	if it, ok := s.items[key]; ok && !it.expired(time.Now()) {
		if parsed, err := strconv.ParseInt(string(it.value), 10, 64); err == nil {
			current = parsed
		}
	}
	current += delta

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	s.items[key] = item{value: []byte(strconv.FormatInt(current, 10)), expiresAt: expiresAt}
	return current, nil
}

func (s *InMemoryStore) SAdd(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sets[set]
	if !ok {
		m = make(map[string]struct{})
		s.sets[set] = m
	}
	m[member] = struct{}{}
	return nil
}

func (s *InMemoryStore) SMembers(_ context.Context, set string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.sets[set]
	out := make([]string, 0, len(m))
	for member := range m {
		out = append(out, member)
	}
	return out, nil
}

func (s *InMemoryStore) SRem(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.sets[set]; ok {
		delete(m, member)
		if len(m) == 0 {
			delete(s.sets, set)
		}
	}
	return nil
}

// Size reports the current number of live (including not-yet-swept
// expired) entries. Used by diagnostics, not by the hot path.
func (s *InMemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
