package leaderboard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"encore.dev/cron"
)

// cronStore is the Store instance scheduled jobs recompute against,
// wired once by RegisterForCron during service init.
var cronStore *Store

// RegisterForCron wires store as the target of the scheduled recompute
// jobs below. Call once during startup.
func RegisterForCron(store *Store) {
	cronStore = store
}

// Owners whose daily and weekly snapshots are recomputed on a schedule,
// independent of the on-demand POST /leaderboard/:scope/recompute.
var scheduledScopes = []string{"global"}

var _ = cron.NewJob("leaderboard-daily-recompute", cron.JobConfig{
	Title:    "Recompute daily leaderboard snapshots",
	Schedule: "*/5 * * * *", // every 5 minutes, inside the daily freshness window
	Endpoint: RecomputeDaily,
})

//encore:api private
func RecomputeDaily(ctx context.Context) error {
	return recomputeScopes(ctx, "daily")
}

var _ = cron.NewJob("leaderboard-weekly-recompute", cron.JobConfig{
	Title:    "Recompute weekly leaderboard snapshots",
	Schedule: "*/15 * * * *", // every 15 minutes, inside the weekly freshness window
	Endpoint: RecomputeWeekly,
})

//encore:api private
func RecomputeWeekly(ctx context.Context) error {
	return recomputeScopes(ctx, "weekly")
}

// recomputeScopes fans the batch out across owners concurrently: one
// scheduled tick can cover many owners and none should wait on another's
// rebuild.
func recomputeScopes(ctx context.Context, scope string) error {
	if cronStore == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, owner := range scheduledScopes {
		owner := owner
		g.Go(func() error {
			_, err := cronStore.Recompute(gctx, owner, scope)
			return err
		})
	}
	return g.Wait()
}
