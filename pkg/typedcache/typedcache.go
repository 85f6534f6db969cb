// Package typedcache implements TypedCacheStore[T]: a per-domain typed
// wrapper over IndexedCacheFacade providing encode/decode, TTL policy and
// namespace convention for a single value type.
//
// Adapted from the teacher's per-feature json.Marshal/Unmarshal calls
// scattered through cache-manager/service.go into the "global singleton
// caches keyed by class" → "TypedCacheStore[T] instantiated once at
// composition root" redesign: one instantiation per value type, carrying
// its own namespace and TTL, rather than one shared untyped cache.
package typedcache

import (
	"context"
	"time"
)

// Facade is the subset of IndexedCacheFacade a typed store needs. Kept
// narrow and interface-based so tests can fake it without standing up a
// real cachefacade.Facade.
type Facade interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool)
	Put(ctx context.Context, namespace, indexKey, key string, value []byte, ttl time.Duration) error
	InvalidateEntry(ctx context.Context, namespace, indexKey, key string) error
	InvalidateNamespace(ctx context.Context, namespace, indexKey string) error
}

// Codec converts a value of type T to and from its wire representation.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// Store is a TypedCacheStore[T] instance bound to one namespace, one
// TTL policy, and one codec.
type Store[T any] struct {
	facade    Facade
	namespace string
	ttl       time.Duration
	codec     Codec[T]

	// onDecodeFailure is called with the offending composite key so the
	// caller can evict it; wired by New to facade.InvalidateEntry.
	onDecodeFailure func(ctx context.Context, key string)
}

// New constructs a Store bound to namespace, with values encoded/decoded
// via codec and cached for ttl.
func New[T any](facade Facade, namespace string, ttl time.Duration, codec Codec[T]) *Store[T] {
	s := &Store[T]{facade: facade, namespace: namespace, ttl: ttl, codec: codec}
	s.onDecodeFailure = func(ctx context.Context, key string) {
		_ = facade.InvalidateEntry(ctx, namespace, indexOf(key), key)
	}
	return s
}

// indexOf derives the grouping index key from an entry key following the
// hierarchical ":"-joined convention: the leading segment up to the last
// ":" is the discriminator the index groups on (typically the user id).
func indexOf(key string) string {
	last := -1
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			last = i
		}
	}
	if last == -1 {
		return key
	}
	return key[:last]
}

// Get returns the decoded value for key, or ok=false on miss or decode
// failure. A decode failure additionally evicts the offending key so a
// poisoned entry can't keep shadowing a fresh write.
func (s *Store[T]) Get(ctx context.Context, key string) (value T, ok bool) {
	raw, hit := s.facade.Get(ctx, s.namespace, key)
	if !hit {
		return value, false
	}

	decoded, err := s.codec.Decode(raw)
	if err != nil {
		s.onDecodeFailure(ctx, key)
		return value, false
	}
	return decoded, true
}

// Put encodes value and writes it under (namespace, indexKey, key) with
// the store's configured TTL.
func (s *Store[T]) Put(ctx context.Context, indexKey, key string, value T) error {
	encoded, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	return s.facade.Put(ctx, s.namespace, indexKey, key, encoded, s.ttl)
}

// PutWithTTL is Put with a caller-supplied TTL override, used by the
// fallback stage to cache degraded artifacts at a quarter of the normal
// lifetime.
func (s *Store[T]) PutWithTTL(ctx context.Context, indexKey, key string, value T, ttl time.Duration) error {
	encoded, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	return s.facade.Put(ctx, s.namespace, indexKey, key, encoded, ttl)
}

// InvalidateNamespace delegates to the underlying facade.
func (s *Store[T]) InvalidateNamespace(ctx context.Context, indexKey string) error {
	return s.facade.InvalidateNamespace(ctx, s.namespace, indexKey)
}

// TTL returns the store's configured default TTL, e.g. so callers can
// derive the fallback-stage reduced TTL without hardcoding it twice.
func (s *Store[T]) TTL() time.Duration {
	return s.ttl
}
