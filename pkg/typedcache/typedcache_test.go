package typedcache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeFacade struct {
	mu                    sync.Mutex
	store                 map[string][]byte
	invalidatedEntries    []string
	invalidatedNamespaces []string
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{store: make(map[string][]byte)}
}

func (f *fakeFacade) key(namespace, key string) string { return namespace + ":" + key }

func (f *fakeFacade) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[f.key(namespace, key)]
	return v, ok
}

func (f *fakeFacade) Put(ctx context.Context, namespace, indexKey, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[f.key(namespace, key)] = value
	return nil
}

func (f *fakeFacade) InvalidateEntry(ctx context.Context, namespace, indexKey, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store, f.key(namespace, key))
	f.invalidatedEntries = append(f.invalidatedEntries, namespace+":"+key)
	return nil
}

func (f *fakeFacade) InvalidateNamespace(ctx context.Context, namespace, indexKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidatedNamespaces = append(f.invalidatedNamespaces, namespace+":"+indexKey)
	return nil
}

type widget struct {
	Name  string
	Count int
}

func TestStore_PutGet_RoundTrips(t *testing.T) {
	facade := newFakeFacade()
	store := New[widget](facade, "widgets", time.Minute, JSONCodec[widget]{})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user-1", "user-1:widget-a", widget{Name: "a", Count: 3}))

	got, ok := store.Get(ctx, "user-1:widget-a")
	require.True(t, ok)
	require.Equal(t, widget{Name: "a", Count: 3}, got)
}

func TestStore_Get_Miss(t *testing.T) {
	facade := newFakeFacade()
	store := New[widget](facade, "widgets", time.Minute, JSONCodec[widget]{})

	_, ok := store.Get(context.Background(), "nope")
	require.False(t, ok)
}

func TestStore_Get_DecodeFailureEvictsKey(t *testing.T) {
	facade := newFakeFacade()
	facade.store["widgets:user-1:widget-a"] = []byte("not valid json{{{")
	store := New[widget](facade, "widgets", time.Minute, JSONCodec[widget]{})

	_, ok := store.Get(context.Background(), "user-1:widget-a")
	require.False(t, ok, "a corrupt payload should report a miss")
	require.Equal(t, []string{"widgets:user-1:widget-a"}, facade.invalidatedEntries)
}

func TestStore_PutWithTTL(t *testing.T) {
	facade := newFakeFacade()
	store := New[widget](facade, "widgets", time.Hour, JSONCodec[widget]{})

	require.NoError(t, store.PutWithTTL(context.Background(), "user-1", "user-1:w", widget{Name: "x"}, time.Second))
	require.Equal(t, time.Hour, store.TTL(), "TTL() reports the store's default, PutWithTTL overrides only that call")
}

func TestStore_InvalidateNamespace(t *testing.T) {
	facade := newFakeFacade()
	store := New[widget](facade, "widgets", time.Minute, JSONCodec[widget]{})

	require.NoError(t, store.InvalidateNamespace(context.Background(), "user-1"))
	require.Equal(t, []string{"widgets:user-1"}, facade.invalidatedNamespaces)
}

type failingCodec struct{}

func (failingCodec) Encode(widget) ([]byte, error) { return nil, errors.New("encode boom") }
func (failingCodec) Decode([]byte) (widget, error) { return widget{}, errors.New("decode boom") }

func TestStore_Put_EncodeFailurePropagates(t *testing.T) {
	facade := newFakeFacade()
	store := New[widget](facade, "widgets", time.Minute, failingCodec{})

	err := store.Put(context.Background(), "user-1", "user-1:w", widget{})
	require.Error(t, err)
}

func TestJSONCodec_RoundTrips(t *testing.T) {
	c := JSONCodec[widget]{}
	encoded, err := c.Encode(widget{Name: "a", Count: 1})
	require.NoError(t, err)

	var viaStdlib widget
	require.NoError(t, json.Unmarshal(encoded, &viaStdlib))

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, viaStdlib, decoded)
}
