package leaderboard

import (
	"context"

	"encore.app/pkg/apperr"
	"encore.app/pkg/models"
)

// globalOwner is the single leaderboard owner exposed today; a
// per-group or per-gym leaderboard would take the owner from auth data
// instead, but nothing in this layer tracks group membership yet.
const globalOwner = "global"

// SnapshotResponse is the wire shape for GET /leaderboard/:scope.
type SnapshotResponse struct {
	Stale    bool                       `json:"stale"`
	Snapshot models.LeaderboardSnapshot `json:"snapshot"`
}

// GetSnapshot returns the current snapshot for scope, or the last known
// snapshot marked stale if it has aged past its freshness window.
//
//encore:api public method=GET path=/leaderboard/:scope
func GetSnapshot(ctx context.Context, scope string) (*SnapshotResponse, error) {
	if scope != "daily" && scope != "weekly" && scope != "global" {
		return nil, apperr.AsEncoreError(apperr.ValidationFailed("unknown leaderboard scope: " + scope))
	}
	snap, fresh := Shared().Get(ctx, globalOwner, scope)
	return &SnapshotResponse{Stale: !fresh, Snapshot: snap}, nil
}

// RecomputeResponse is the wire shape for POST /leaderboard/:scope/recompute.
type RecomputeResponse struct {
	Accepted bool `json:"accepted"`
}

// Recompute triggers an on-demand rebuild for scope, coalesced with any
// recompute already in flight for it.
//
//encore:api public method=POST path=/leaderboard/:scope/recompute
func Recompute(ctx context.Context, scope string) (*RecomputeResponse, error) {
	if scope != "daily" && scope != "weekly" && scope != "global" {
		return nil, apperr.AsEncoreError(apperr.ValidationFailed("unknown leaderboard scope: " + scope))
	}
	if _, err := Shared().Recompute(ctx, globalOwner, scope); err != nil {
		return nil, apperr.AsEncoreError(err)
	}
	return &RecomputeResponse{Accepted: true}, nil
}
