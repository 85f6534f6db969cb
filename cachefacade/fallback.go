package cachefacade

import (
	"container/list"
	"sync"
	"time"

	"encore.app/pkg/models"
)

type fallbackEntry struct {
	entry     *models.Entry
	expiresAt time.Time
	element   *list.Element
}

// fallbackTier is the bounded in-process map IndexedCacheFacade falls
// back to when the primary KVStore tier is unreachable or too slow.
// Adapted from the teacher's L1Cache: same map+container/list LRU
// structure, generalized to hold models.Entry values and to track a
// "dirty" namespace set so invalidateNamespace can mark fallback reads
// as miss even when it could not enumerate and delete every member.
//
// Trade-offs carried over from the teacher: a single RWMutex is simpler
// than sync.Map here because eviction needs ordered iteration; shard if
// this ever becomes a throughput bottleneck.
type fallbackTier struct {
	mu         sync.RWMutex
	items      map[string]*fallbackEntry
	lru        *list.List
	maxEntries int
	dirty      map[string]time.Time // namespace -> marked-dirty-until
}

func newFallbackTier(maxEntries int) *fallbackTier {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &fallbackTier{
		items:      make(map[string]*fallbackEntry, maxEntries),
		lru:        list.New(),
		maxEntries: maxEntries,
		dirty:      make(map[string]time.Time),
	}
}

func (t *fallbackTier) get(compositeKey string) (*models.Entry, bool) {
	t.mu.RLock()
	fe, ok := t.items[compositeKey]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(fe.expiresAt) {
		t.mu.Lock()
		t.deleteUnsafe(compositeKey)
		t.mu.Unlock()
		return nil, false
	}

	t.mu.Lock()
	t.lru.MoveToFront(fe.element)
	t.mu.Unlock()

	return fe.entry, true
}

func (t *fallbackTier) set(compositeKey string, entry *models.Entry, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiresAt := time.Now().Add(ttl)

	if fe, exists := t.items[compositeKey]; exists {
		fe.entry = entry
		fe.expiresAt = expiresAt
		t.lru.MoveToFront(fe.element)
		return
	}

	if t.lru.Len() >= t.maxEntries {
		t.evictOldestUnsafe()
	}

	fe := &fallbackEntry{entry: entry, expiresAt: expiresAt}
	fe.element = t.lru.PushFront(compositeKey)
	t.items[compositeKey] = fe
}

func (t *fallbackTier) delete(compositeKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteUnsafe(compositeKey)
}

func (t *fallbackTier) deleteUnsafe(compositeKey string) bool {
	fe, exists := t.items[compositeKey]
	if !exists {
		return false
	}
	t.lru.Remove(fe.element)
	delete(t.items, compositeKey)
	return true
}

func (t *fallbackTier) evictOldestUnsafe() {
	oldest := t.lru.Back()
	if oldest == nil {
		return
	}
	key := oldest.Value.(string)
	t.lru.Remove(oldest)
	delete(t.items, key)
}

// markDirty flags a namespace so subsequent reads through it are treated
// as misses even though stale entries may still physically be present
// (invalidateNamespace's best-effort atomicity guard).
func (t *fallbackTier) markDirty(namespace string, until time.Time) {
	t.mu.Lock()
	t.dirty[namespace] = until
	t.mu.Unlock()
}

func (t *fallbackTier) isDirty(namespace string) bool {
	t.mu.RLock()
	until, ok := t.dirty[namespace]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(until) {
		t.mu.Lock()
		delete(t.dirty, namespace)
		t.mu.Unlock()
		return false
	}
	return true
}

func (t *fallbackTier) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
