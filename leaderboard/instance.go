package leaderboard

import (
	"time"

	"encore.app/cachefacade"
	"encore.app/pkg/coordinator"
	"encore.app/pkg/models"
	"encore.app/pkg/observability"
	"encore.app/pkg/typedcache"
)

// source backs the recompute Rebuilder. No activity/streak tracker
// exists in this layer yet, so scopes start empty until something feeds
// ActivitySource real data; scheduled and on-demand recomputes simply
// produce empty snapshots until then.
var source = NewStaticActivitySource(map[string][]models.LeaderboardEntry{
	"global": {},
})

var shared = New(
	typedcache.New[models.LeaderboardSnapshot](cachefacade.Shared(), "leaderboard", time.Hour, typedcache.JSONCodec[models.LeaderboardSnapshot]{}),
	coordinator.New(),
	RebuilderFrom(source),
	observability.Shared().Logger(),
)

func init() {
	RegisterForCron(shared)
}

// Shared returns the process-wide Store the leaderboard HTTP surface and
// scheduled recompute jobs read and write through.
func Shared() *Store {
	return shared
}
