package leaderboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"encore.app/pkg/coordinator"
	"encore.app/pkg/models"
	"encore.app/pkg/typedcache"
)

type fakeSnapshotFacade struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeSnapshotFacade() *fakeSnapshotFacade {
	return &fakeSnapshotFacade{store: make(map[string][]byte)}
}

func (f *fakeSnapshotFacade) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[namespace+":"+key]
	return v, ok
}

func (f *fakeSnapshotFacade) Put(ctx context.Context, namespace, indexKey, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[namespace+":"+key] = value
	return nil
}

func (f *fakeSnapshotFacade) InvalidateEntry(ctx context.Context, namespace, indexKey, key string) error {
	return nil
}

func (f *fakeSnapshotFacade) InvalidateNamespace(ctx context.Context, namespace, indexKey string) error {
	return nil
}

func newTestStore(rebuild Rebuilder) *Store {
	facade := newFakeSnapshotFacade()
	cache := typedcache.New[models.LeaderboardSnapshot](facade, "leaderboard", time.Hour, typedcache.JSONCodec[models.LeaderboardSnapshot]{})
	return New(cache, coordinator.New(), rebuild, zap.NewNop())
}

func TestStore_Get_MissWhenNeverComputed(t *testing.T) {
	s := newTestStore(nil)
	_, ok := s.Get(context.Background(), "global", "daily")
	require.False(t, ok, "Get() before any Recompute should miss")
}

func TestStore_Recompute_RanksByScoreThenStreakStartThenUserID(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []models.LeaderboardEntry{
		{UserID: "u3", Score: 50, StreakStart: t0},
		{UserID: "u1", Score: 90, StreakStart: t0.Add(time.Hour)},
		{UserID: "u2", Score: 90, StreakStart: t0},
		// u4 ties u2 on score and streak-start; user_id tie-break puts u2 first.
		{UserID: "u4", Score: 90, StreakStart: t0},
	}

	s := newTestStore(func(ctx context.Context, scope string) ([]models.LeaderboardEntry, error) {
		return append([]models.LeaderboardEntry{}, entries...), nil
	})

	snap, err := s.Recompute(context.Background(), "global", "daily")
	require.NoError(t, err)
	wantOrder := []string{"u2", "u4", "u1", "u3"}
	require.Len(t, snap.Entries, len(wantOrder))
	for i, want := range wantOrder {
		require.Equal(t, want, snap.Entries[i].UserID)
		require.Equal(t, i+1, snap.Entries[i].Rank)
	}
}

func TestStore_GetAfterRecompute_HitsUntilStale(t *testing.T) {
	s := newTestStore(func(ctx context.Context, scope string) ([]models.LeaderboardEntry, error) {
		return []models.LeaderboardEntry{{UserID: "u1", Score: 1}}, nil
	})
	ctx := context.Background()

	_, err := s.Recompute(ctx, "global", "daily")
	require.NoError(t, err)

	snap, ok := s.Get(ctx, "global", "daily")
	require.True(t, ok)
	require.Len(t, snap.Entries, 1)
}

func TestStore_Recompute_CoalescesConcurrentCalls(t *testing.T) {
	var calls int32
	start := make(chan struct{})
	s := newTestStore(func(ctx context.Context, scope string) ([]models.LeaderboardEntry, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return []models.LeaderboardEntry{{UserID: "u1", Score: 1}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Recompute(context.Background(), "global", "daily")
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, calls, "rebuild called once for 5 concurrent Recompute()s")
}

func TestStore_Recompute_PropagatesRebuildError(t *testing.T) {
	s := newTestStore(func(ctx context.Context, scope string) ([]models.LeaderboardEntry, error) {
		return nil, errors.New("source unavailable")
	})

	_, err := s.Recompute(context.Background(), "global", "daily")
	require.Error(t, err, "Recompute() should propagate a rebuild error")
}
