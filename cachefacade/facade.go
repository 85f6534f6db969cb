// Package cachefacade implements IndexedCacheFacade: a uniform two-tier
// cache API (networked primary, bounded in-process fallback) with
// namespace-grouped bulk invalidation.
//
// Adapted from the teacher's cache-manager service: the primary/fallback
// split mirrors L2/L1 there, but origin-fetch responsibility has moved
// out to the orchestration package — this facade only ever talks to its
// own two tiers, never to a model or external catalog.
package cachefacade

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"encore.app/pkg/apperr"
	"encore.app/pkg/kv"
	"encore.app/pkg/models"
	"encore.app/pkg/observability"
)

// Config tunes the facade's tiers and degraded-mode behavior.
type Config struct {
	FallbackMaxEntries int           // bounded in-process tier capacity
	PrimaryDeadline    time.Duration // max time to wait on primary per op
	RetryBackoff       []time.Duration
}

// DefaultConfig matches spec defaults: 150ms primary deadline, 10000
// fallback entries, two retries at 100ms/400ms during invalidateNamespace.
func DefaultConfig() Config {
	return Config{
		FallbackMaxEntries: 10000,
		PrimaryDeadline:    150 * time.Millisecond,
		RetryBackoff:       []time.Duration{100 * time.Millisecond, 400 * time.Millisecond},
	}
}

// Notifier broadcasts the invalidations this facade performs and keeps an
// audit trail of them. The composition root wires this to the
// invalidation service; SetNotifier defaults to a no-op so the facade is
// usable standalone in tests.
type Notifier interface {
	NotifyEntry(ctx context.Context, namespace, indexKey, key string)
	NotifyNamespace(ctx context.Context, namespace, indexKey string)
}

type noopNotifier struct{}

func (noopNotifier) NotifyEntry(context.Context, string, string, string) {}
func (noopNotifier) NotifyNamespace(context.Context, string, string)     {}

// Facade is the IndexedCacheFacade implementation.
type Facade struct {
	primary  kv.Store
	fallback *fallbackTier
	config   Config
	log      *zap.Logger
	hooks    *observability.Hooks
	notifier Notifier

	// flushMu is not taken by any method: the facade has no
	// degraded-recovery flush, and writes accepted only by the fallback
	// tier are never replayed to the primary.
	flushMu sync.Mutex
}

// New constructs a Facade over a primary KVStore-compatible backend.
func New(primary kv.Store, config Config, log *zap.Logger, hooks *observability.Hooks) *Facade {
	return &Facade{
		primary:  primary,
		fallback: newFallbackTier(config.FallbackMaxEntries),
		config:   config,
		log:      log,
		hooks:    hooks,
		notifier: noopNotifier{},
	}
}

// SetNotifier wires the facade to broadcast invalidations it performs.
// Called once from the composition root.
func (f *Facade) SetNotifier(n Notifier) {
	if n != nil {
		f.notifier = n
	}
}

func indexSetKey(namespace string) string {
	return namespace + ":idx"
}

// Get returns the payload for (namespace, key), preferring the primary
// tier and falling back to the in-process tier on primary error, miss,
// or deadline. It never returns an error: every failure degrades to a
// recorded miss, per the facade's failure semantics. A namespace marked
// dirty by a degraded InvalidateNamespace reads as a miss from both tiers
// until the mark expires.
func (f *Facade) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	compositeKey := namespace + ":" + key

	if f.fallback.isDirty(namespace) {
		f.hooks.CacheAccess(namespace, "false")
		return nil, false
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, f.config.PrimaryDeadline)
	payload, hit, err := f.primary.Get(deadlineCtx, compositeKey)
	cancel()

	if err == nil && hit {
		f.hooks.CacheAccess(namespace, "true")
		return payload, true
	}
	if err != nil {
		f.hooks.CacheAccess(namespace, "degraded")
		f.log.Debug("cache primary get degraded", zap.String("namespace", namespace), zap.Error(err))
	}

	if entry, ok := f.fallback.get(compositeKey); ok && !entry.IsExpired(time.Now()) {
		f.hooks.CacheAccess(namespace, "true")
		return entry.Payload, true
	}

	f.hooks.CacheAccess(namespace, "false")
	return nil, false
}

// Put writes value under (namespace, key), grouping it into indexKey's
// NamespaceIndex for later bulk invalidation, and mirrors it into the
// fallback tier. Put succeeds if at least one tier accepted the write.
func (f *Facade) Put(ctx context.Context, namespace, indexKey, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return apperr.ValidationFailed("put requires a positive ttl")
	}

	compositeKey := namespace + ":" + key
	entry := models.NewEntryWithTTL(namespace, key, value, ttl)

	deadlineCtx, cancel := context.WithTimeout(ctx, f.config.PrimaryDeadline)
	primaryErr := f.primary.Set(deadlineCtx, compositeKey, value, ttl)
	cancel()

	if primaryErr == nil {
		indexCtx, indexCancel := context.WithTimeout(ctx, f.config.PrimaryDeadline)
		_ = f.primary.SAdd(indexCtx, indexSetKey(indexKey), key)
		indexCancel()
	}

	f.fallback.set(compositeKey, entry, ttl)

	if primaryErr != nil {
		f.hooks.CacheAccess(namespace, "degraded")
		f.log.Warn("cache primary put degraded, fallback accepted", zap.String("namespace", namespace), zap.Error(primaryErr))
	}
	return nil
}

// InvalidateEntry deletes a single key from both tiers and removes it
// from its index.
func (f *Facade) InvalidateEntry(ctx context.Context, namespace, indexKey, key string) error {
	compositeKey := namespace + ":" + key

	deadlineCtx, cancel := context.WithTimeout(ctx, f.config.PrimaryDeadline)
	primaryErr := f.primary.Delete(deadlineCtx, compositeKey)
	_ = f.primary.SRem(deadlineCtx, indexSetKey(indexKey), key)
	cancel()

	f.fallback.delete(compositeKey)
	f.notifier.NotifyEntry(ctx, namespace, indexKey, key)

	if primaryErr != nil {
		return apperr.CacheDegraded(primaryErr)
	}
	return nil
}

// InvalidateNamespace enumerates indexKey's members and deletes every
// entry plus the index itself. On partial primary failure it retries
// once per configured backoff step, then marks the namespace dirty in
// the fallback tier so reads treat it as miss until the mark expires.
func (f *Facade) InvalidateNamespace(ctx context.Context, namespace, indexKey string) error {
	set := indexSetKey(indexKey)

	members, err := f.primary.SMembers(ctx, set)
	if err != nil {
		f.fallback.markDirty(namespace, time.Now().Add(5*time.Minute))
		return apperr.CacheDegraded(err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(f.config.RetryBackoff); attempt++ {
		lastErr = f.deleteMembers(ctx, namespace, set, members)
		if lastErr == nil {
			f.notifier.NotifyNamespace(ctx, namespace, indexKey)
			return nil
		}
		if attempt < len(f.config.RetryBackoff) {
			select {
			case <-time.After(f.config.RetryBackoff[attempt]):
			case <-ctx.Done():
				f.fallback.markDirty(namespace, time.Now().Add(5*time.Minute))
				return apperr.CacheDegraded(ctx.Err())
			}
		}
	}

	f.fallback.markDirty(namespace, time.Now().Add(5*time.Minute))
	f.log.Warn("namespace invalidation degraded after retries",
		zap.String("namespace", namespace), zap.Error(lastErr))
	return apperr.CacheDegraded(lastErr)
}

func (f *Facade) deleteMembers(ctx context.Context, namespace, set string, members []string) error {
	compositeKeys := make([]string, len(members))
	for i, m := range members {
		compositeKeys[i] = namespace + ":" + m
		f.fallback.delete(compositeKeys[i])
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, f.config.PrimaryDeadline)
	defer cancel()

	if err := f.primary.DeleteKeys(deadlineCtx, compositeKeys); err != nil {
		return err
	}
	for _, m := range members {
		_ = f.primary.SRem(deadlineCtx, set, m)
	}
	return nil
}

// FallbackSize reports the fallback tier's current occupancy, exposed
// for diagnostics and tests.
func (f *Facade) FallbackSize() int {
	return f.fallback.size()
}
