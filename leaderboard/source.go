package leaderboard

import (
	"context"

	"encore.app/pkg/models"
)

// ActivitySource supplies the raw per-user scores a scope ranks.
// Wherever those scores are tracked (streak/activity logging) is out of
// this layer's scope, the same boundary orchestration.ProfileRevisionLookup
// draws around profile data; a concrete source just needs to satisfy this
// one method to back Recompute.
type ActivitySource interface {
	ScoresForScope(ctx context.Context, scope string) ([]models.LeaderboardEntry, error)
}

// StaticActivitySource is an ActivitySource over a fixed, in-process
// table, useful for scopes seeded at startup or for tests.
type StaticActivitySource struct {
	byScope map[string][]models.LeaderboardEntry
}

// NewStaticActivitySource builds a StaticActivitySource from a
// scope-to-entries table.
func NewStaticActivitySource(byScope map[string][]models.LeaderboardEntry) *StaticActivitySource {
	return &StaticActivitySource{byScope: byScope}
}

func (s *StaticActivitySource) ScoresForScope(ctx context.Context, scope string) ([]models.LeaderboardEntry, error) {
	return s.byScope[scope], nil
}

// RebuilderFrom adapts an ActivitySource to the Rebuilder func Store
// expects.
func RebuilderFrom(source ActivitySource) Rebuilder {
	return func(ctx context.Context, scope string) ([]models.LeaderboardEntry, error) {
		return source.ScoresForScope(ctx, scope)
	}
}
