// Package models provides canonical data types shared across the caching
// and orchestration layer: cache entries, namespace indexes, quota records,
// operation fingerprints, artifacts and leaderboard snapshots.
//
// Design Philosophy:
// - Minimal allocations on hot paths
// - Thread-safe counters using atomic primitives
// - Explicit expiry semantics, no implicit clocks
package models

import (
	"sync/atomic"
	"time"
)

// DefaultTTL is used when a caller stores a value without an explicit TTL.
const DefaultTTL = 1 * time.Hour

// Entry is a single cache entry as stored by IndexedCacheFacade. Namespace
// and Key together form the facade's addressing scheme; Namespace is also
// the unit of bulk invalidation (see NamespaceIndex).
//
// Thread Safety: AccessCount uses atomic operations. Other fields are
// owned by the facade tier that holds the entry and are not mutated
// concurrently once published.
type Entry struct {
	Namespace string // logical grouping used for bulk invalidation
	Key       string // facade-level key, unique within Namespace
	Payload   []byte // already-encoded value (origin's response, serialized)

	StoredAt time.Time     // when the entry was written
	TTL      time.Duration // time-to-live; zero means it never expires

	AccessCount uint64 // accesses since creation, atomic

	Metadata map[string]string // optional tier/origin provenance tags
}

// NewEntry creates an entry with DefaultTTL.
func NewEntry(namespace, key string, payload []byte) *Entry {
	return NewEntryWithTTL(namespace, key, payload, DefaultTTL)
}

// NewEntryWithTTL creates an entry with a caller-supplied TTL.
func NewEntryWithTTL(namespace, key string, payload []byte, ttl time.Duration) *Entry {
	return &Entry{
		Namespace: namespace,
		Key:       key,
		Payload:   payload,
		StoredAt:  time.Now(),
		TTL:       ttl,
		Metadata:  make(map[string]string),
	}
}

// IndexKey returns the composite key used by the namespace index and the
// L2 key grammar: "<namespace>:<key>".
func (e *Entry) IndexKey() string {
	return e.Namespace + ":" + e.Key
}

// IsExpired reports whether at least TTL has elapsed since StoredAt as of
// now; an entry is already expired at exactly StoredAt+TTL.
func (e *Entry) IsExpired(now time.Time) bool {
	if e.TTL == 0 {
		return false
	}
	return !now.Before(e.StoredAt.Add(e.TTL))
}

// ExpiresAt returns the absolute expiration time, or the zero Time if the
// entry never expires.
func (e *Entry) ExpiresAt() time.Time {
	if e.TTL == 0 {
		return time.Time{}
	}
	return e.StoredAt.Add(e.TTL)
}

// TimeUntilExpiry returns the duration remaining before expiry, or 0 if
// already expired.
func (e *Entry) TimeUntilExpiry(now time.Time) time.Duration {
	if e.TTL == 0 {
		return time.Duration(1<<63 - 1)
	}
	remaining := e.StoredAt.Add(e.TTL).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Touch increments the access counter. Thread-safe.
func (e *Entry) Touch() {
	atomic.AddUint64(&e.AccessCount, 1)
}

// GetAccessCount returns the current access count.
func (e *Entry) GetAccessCount() uint64 {
	return atomic.LoadUint64(&e.AccessCount)
}

// Size approximates the entry's footprint in bytes. The fallback tier
// bounds itself by entry count, not by Size.
func (e *Entry) Size() int {
	size := len(e.Namespace) + len(e.Key) + len(e.Payload)
	for k, v := range e.Metadata {
		size += len(k) + len(v)
	}
	size += 64 // timestamps, counters
	return size
}

// Clone returns a deep copy safe to hand to a caller outside the facade.
func (e *Entry) Clone() *Entry {
	payload := make([]byte, len(e.Payload))
	copy(payload, e.Payload)

	metadata := make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		metadata[k] = v
	}

	return &Entry{
		Namespace:   e.Namespace,
		Key:         e.Key,
		Payload:     payload,
		StoredAt:    e.StoredAt,
		TTL:         e.TTL,
		AccessCount: atomic.LoadUint64(&e.AccessCount),
		Metadata:    metadata,
	}
}

// SetMetadata sets a metadata key-value pair.
func (e *Entry) SetMetadata(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}

// GetMetadata retrieves a metadata value by key.
func (e *Entry) GetMetadata(key string) (string, bool) {
	if e.Metadata == nil {
		return "", false
	}
	val, ok := e.Metadata[key]
	return val, ok
}

// EntryStats summarizes an entry's runtime profile. No endpoint or
// eviction policy reads it; the fallback tier evicts in plain LRU order.
type EntryStats struct {
	IndexKey        string
	Size            int
	Age             time.Duration
	TTL             time.Duration
	AccessCount     uint64
	AccessFrequency float64 // accesses per second since creation
}

// Stats computes a point-in-time summary of the entry.
func (e *Entry) Stats(now time.Time) EntryStats {
	age := now.Sub(e.StoredAt)
	accessCount := e.GetAccessCount()

	frequency := 0.0
	if age.Seconds() > 0 {
		frequency = float64(accessCount) / age.Seconds()
	}

	return EntryStats{
		IndexKey:        e.IndexKey(),
		Size:            e.Size(),
		Age:             age,
		TTL:             e.TTL,
		AccessCount:     accessCount,
		AccessFrequency: frequency,
	}
}

// NamespaceIndex tracks which composite keys currently belong to a
// namespace, so bulk invalidation can enumerate them without a full scan
// of the backing store. See IndexedCacheFacade.InvalidateNamespace.
type NamespaceIndex struct {
	Namespace string
	Keys      map[string]struct{}
}

// NewNamespaceIndex creates an empty index for a namespace.
func NewNamespaceIndex(namespace string) *NamespaceIndex {
	return &NamespaceIndex{Namespace: namespace, Keys: make(map[string]struct{})}
}

// Add records a key as a member of the namespace.
func (n *NamespaceIndex) Add(key string) {
	n.Keys[key] = struct{}{}
}

// Remove drops a key from the namespace's membership set.
func (n *NamespaceIndex) Remove(key string) {
	delete(n.Keys, key)
}

// Members returns a snapshot slice of the namespace's current keys.
func (n *NamespaceIndex) Members() []string {
	out := make([]string, 0, len(n.Keys))
	for k := range n.Keys {
		out = append(out, k)
	}
	return out
}

// Len reports how many keys are currently tracked.
func (n *NamespaceIndex) Len() int {
	return len(n.Keys)
}
