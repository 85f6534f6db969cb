package cachefacade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"encore.app/pkg/kv"
	"encore.app/pkg/observability"
)

type erroringStore struct {
	kv.Store
	err          error
	failSMembers bool
}

func (s *erroringStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, s.err
}

func (s *erroringStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if s.failSMembers {
		return nil, errors.New("index unreachable")
	}
	return s.Store.SMembers(ctx, key)
}

type fakeNotifier struct {
	mu             sync.Mutex
	entryCalls     []string
	namespaceCalls []string
}

func (n *fakeNotifier) NotifyEntry(ctx context.Context, namespace, indexKey, key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entryCalls = append(n.entryCalls, namespace+":"+indexKey+":"+key)
}

func (n *fakeNotifier) NotifyNamespace(ctx context.Context, namespace, indexKey string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.namespaceCalls = append(n.namespaceCalls, namespace+":"+indexKey)
}

func newTestFacade() *Facade {
	return New(kv.NewInMemoryStore(), DefaultConfig(), zap.NewNop(), observability.NewNop())
}

func TestFacade_PutGet_PrimaryHit(t *testing.T) {
	f := newTestFacade()
	ctx := context.Background()

	require.NoError(t, f.Put(ctx, "artifacts", "idx:user-1", "recipe-1", []byte("payload"), time.Minute))

	val, hit := f.Get(ctx, "artifacts", "recipe-1")
	require.True(t, hit)
	require.Equal(t, "payload", string(val))
}

func TestFacade_Get_FallsBackOnPrimaryError(t *testing.T) {
	store := &erroringStore{Store: kv.NewInMemoryStore(), err: errors.New("unreachable")}
	f := New(store, DefaultConfig(), zap.NewNop(), observability.NewNop())
	ctx := context.Background()

	// Put mirrors into the fallback tier even though primary.Get will fail.
	require.NoError(t, f.Put(ctx, "artifacts", "idx", "key-1", []byte("v"), time.Minute))

	val, hit := f.Get(ctx, "artifacts", "key-1")
	require.True(t, hit, "should fall back to the in-process tier")
	require.Equal(t, "v", string(val))
}

func TestFacade_Get_Miss(t *testing.T) {
	f := newTestFacade()
	_, hit := f.Get(context.Background(), "artifacts", "nope")
	require.False(t, hit)
}

func TestFacade_Put_RejectsNonPositiveTTL(t *testing.T) {
	f := newTestFacade()
	err := f.Put(context.Background(), "ns", "idx", "k", []byte("v"), 0)
	require.Error(t, err)
}

func TestFacade_InvalidateEntry_RemovesAndNotifies(t *testing.T) {
	f := newTestFacade()
	notifier := &fakeNotifier{}
	f.SetNotifier(notifier)
	ctx := context.Background()

	require.NoError(t, f.Put(ctx, "artifacts", "idx", "key-1", []byte("v"), time.Minute))
	require.NoError(t, f.InvalidateEntry(ctx, "artifacts", "idx", "key-1"))

	_, hit := f.Get(ctx, "artifacts", "key-1")
	require.False(t, hit)
	require.Equal(t, []string{"artifacts:idx:key-1"}, notifier.entryCalls)
}

func TestFacade_InvalidateNamespace_DeletesIndexedMembersAndNotifies(t *testing.T) {
	f := newTestFacade()
	notifier := &fakeNotifier{}
	f.SetNotifier(notifier)
	ctx := context.Background()

	require.NoError(t, f.Put(ctx, "artifacts", "user-1", "recipe-a", []byte("a"), time.Minute))
	require.NoError(t, f.Put(ctx, "artifacts", "user-1", "recipe-b", []byte("b"), time.Minute))

	require.NoError(t, f.InvalidateNamespace(ctx, "artifacts", "user-1"))

	_, hitA := f.Get(ctx, "artifacts", "recipe-a")
	_, hitB := f.Get(ctx, "artifacts", "recipe-b")
	require.False(t, hitA)
	require.False(t, hitB)
	require.Equal(t, []string{"artifacts:user-1"}, notifier.namespaceCalls)
}

func TestFacade_InvalidateNamespace_MarksDirtyOnEnumerationFailure(t *testing.T) {
	store := &erroringStore{Store: kv.NewInMemoryStore(), failSMembers: true}
	f := New(store, DefaultConfig(), zap.NewNop(), observability.NewNop())
	ctx := context.Background()

	notifier := &fakeNotifier{}
	f.SetNotifier(notifier)

	err := f.InvalidateNamespace(ctx, "artifacts", "user-1")
	require.Error(t, err, "should surface the enumeration error")
	require.True(t, f.fallback.isDirty("artifacts"))
	require.Empty(t, notifier.namespaceCalls, "a degraded invalidation should not notify success")
}

func TestFacade_FallbackSize(t *testing.T) {
	f := newTestFacade()
	ctx := context.Background()
	require.NoError(t, f.Put(ctx, "ns", "idx", "a", []byte("1"), time.Minute))
	require.NoError(t, f.Put(ctx, "ns", "idx", "b", []byte("2"), time.Minute))

	require.Equal(t, 2, f.FallbackSize())
}
