// Package leaderboard implements LeaderboardSnapshotStore: leaderboard
// snapshots addressable by (owner, scope), with staleness-aware reads and
// coalesced recomputation.
//
// Grounded in the teacher's monitoring/aggregator.go staleness model
// (now - generated_at < freshness), generalized from a fixed aggregation
// window to a per-scope snapshot, and in warming/cron.go's encore.dev/cron
// jobs for recompute's scheduled trigger. Concurrent recomputes for one
// scope are coalesced through the same SingleFlightCoordinator the
// orchestration pipeline uses.
package leaderboard

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"encore.app/pkg/coordinator"
	"encore.app/pkg/models"
	"encore.app/pkg/typedcache"
)

// Freshness windows: daily scopes tolerate a 5 minute old snapshot,
// weekly scopes 15 minutes, matching spec defaults.
var freshnessByScope = map[string]time.Duration{
	"daily":  5 * time.Minute,
	"weekly": 15 * time.Minute,
}

func freshnessFor(scope string) time.Duration {
	if d, ok := freshnessByScope[scope]; ok {
		return d
	}
	return 5 * time.Minute
}

// Rebuilder computes a fresh snapshot for scope from the source of
// truth. Supplied by the composition root; this package has no opinion
// on where scores come from.
type Rebuilder func(ctx context.Context, scope string) ([]models.LeaderboardEntry, error)

// Store is the LeaderboardSnapshotStore implementation.
type Store struct {
	cache     *typedcache.Store[models.LeaderboardSnapshot]
	coalescer *coordinator.SingleFlightCoordinator
	rebuild   Rebuilder
	log       *zap.Logger
}

// New constructs a Store. cache must be namespaced for leaderboard
// snapshots; rebuild supplies fresh rankings on recompute.
func New(cache *typedcache.Store[models.LeaderboardSnapshot], coalescer *coordinator.SingleFlightCoordinator, rebuild Rebuilder, log *zap.Logger) *Store {
	return &Store{cache: cache, coalescer: coalescer, rebuild: rebuild, log: log}
}

func snapshotKey(owner, scope string) string {
	return owner + ":" + scope
}

// Get returns the current snapshot for (owner, scope), or ok=false if
// none is cached (zero snapshot) or the cached one has gone stale for its
// scope's freshness window (the stale snapshot is still returned).
func (s *Store) Get(ctx context.Context, owner, scope string) (models.LeaderboardSnapshot, bool) {
	snap, hit := s.cache.Get(ctx, snapshotKey(owner, scope))
	if !hit {
		return models.LeaderboardSnapshot{}, false
	}
	if time.Since(snap.ComputedAt) >= freshnessFor(scope) {
		return snap, false
	}
	return snap, true
}

// Put writes a snapshot with TTL = 2x the scope's freshness window.
func (s *Store) Put(ctx context.Context, owner, scope string, snap models.LeaderboardSnapshot) error {
	return s.cache.PutWithTTL(ctx, owner, snapshotKey(owner, scope), snap, 2*freshnessFor(scope))
}

// Recompute rebuilds the snapshot for (owner, scope), caches it and
// returns it to the caller, ranking entries by score descending, ties
// broken by earliest streak-start ascending then user_id ascending, with
// dense 1..N positions. Concurrent recomputes for the same (owner, scope)
// are coalesced so only one rebuild runs at a time.
func (s *Store) Recompute(ctx context.Context, owner, scope string) (models.LeaderboardSnapshot, error) {
	key := "recompute:" + snapshotKey(owner, scope)

	result := s.coalescer.Do(ctx, key, func(rebuildCtx context.Context) (any, error) {
		entries, err := s.rebuild(rebuildCtx, scope)
		if err != nil {
			return nil, err
		}

		rank(entries)

		snap := models.LeaderboardSnapshot{
			Scope:      scope,
			Version:    time.Now().UnixNano(),
			ComputedAt: time.Now(),
			Entries:    entries,
		}
		if err := s.Put(rebuildCtx, owner, scope, snap); err != nil {
			s.log.Warn("leaderboard snapshot cache write degraded", zap.String("scope", scope), zap.Error(err))
		}
		return snap, nil
	})

	if result.Err != nil {
		return models.LeaderboardSnapshot{}, result.Err
	}
	return result.Value.(models.LeaderboardSnapshot), nil
}

// rank sorts entries by score descending, ties broken by earliest
// streak-start ascending then user_id ascending, and assigns dense 1..N
// positions.
func rank(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].StreakStart.Equal(entries[j].StreakStart) {
			return entries[i].StreakStart.Before(entries[j].StreakStart)
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
